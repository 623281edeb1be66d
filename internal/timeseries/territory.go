package timeseries

// TerritoryMatch selects which row fields identify a small territory.
type TerritoryMatch string

const (
	// MatchByName keys territory remapping on the province/state cell.
	MatchByName TerritoryMatch = "name"
	// MatchByCoordinates keys territory remapping on the raw lat/long cells.
	MatchByCoordinates TerritoryMatch = "coordinates"
)

var territoriesByName = map[string]string{
	"Saint Barthelemy": "France - Saint Barthelemy",
	"St Martin":        "France - St Martin",
	"French Polynesia": "France - French Polynesia",
	"French Guiana":    "France - French Guiana",
	"Mayotte":          "France - Mayotte",
	"Guadeloupe":       "France - Guadeloupe",
	"Curacao":          "Netherlands - Curacao",
	"Gibraltar":        "United Kingdom - Gibraltar",
	"Cayman Islands":   "United Kingdom - Cayman Islands",
}

type coordKey struct {
	lat, lon string
}

// Lat/Long cells exactly as they appear in the CSSE time_series_19-covid-*.csv
// snapshots. Only consulted in MatchByCoordinates mode.
var territoriesByCoordinates = map[coordKey]string{
	{"17.9", "-62.8333"}:     "France - Saint Barthelemy",
	{"18.0708", "-63.0501"}:  "France - St Martin",
	{"-17.6797", "149.4068"}: "France - French Polynesia",
	{"3.9339", "-53.1258"}:   "France - French Guiana",
	{"-12.8275", "45.1662"}:  "France - Mayotte",
	{"16.25", "-61.5833"}:    "France - Guadeloupe",
	{"12.1696", "-68.99"}:    "Netherlands - Curacao",
	{"36.1408", "-5.3536"}:   "United Kingdom - Gibraltar",
	{"19.3133", "-81.2546"}:  "United Kingdom - Cayman Islands",
}

var countryRenames = map[string]string{
	"Antigua and Barbuda":              "Antigua & Barbuda",
	"Bosnia and Herzegovina":           "Bosnia & Herzegovina",
	"Saint Vincent and the Grenadines": "Saint Vincent & the Grenadines",
	"Trinidad and Tobago":              "Trinidad & Tobago",
}

// RemapTerritory overwrites CountryRegion with "<Sovereign> - <Territory>"
// when the record's province/state names a known territory.
func RemapTerritory(r *Record) {
	if r.ProvinceState == nil {
		return
	}
	if cr, ok := territoriesByName[*r.ProvinceState]; ok {
		r.CountryRegion = cr
	}
}

// RemapTerritoryByCoordinates is the coordinate-keyed variant of
// RemapTerritory. lat and lon are the raw cells from the source row.
func RemapTerritoryByCoordinates(r *Record, lat, lon string) {
	if cr, ok := territoriesByCoordinates[coordKey{lat: lat, lon: lon}]; ok {
		r.CountryRegion = cr
	}
}

// RenameCountry canonicalizes "X and Y" country names to "X & Y".
func RenameCountry(r *Record) {
	if cr, ok := countryRenames[r.CountryRegion]; ok {
		r.CountryRegion = cr
	}
}
