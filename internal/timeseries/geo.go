package timeseries

import "strings"

const (
	washingtonDC       = "Washington, D.C."
	usVirginIslands    = "Virgin Islands, U.S."
	virginIslandsState = "Virgin Islands"
)

var stateNames = map[string]string{
	"AL": "Alabama",
	"AK": "Alaska",
	"AZ": "Arizona",
	"AR": "Arkansas",
	"CA": "California",
	"CO": "Colorado",
	"CT": "Connecticut",
	"DE": "Delaware",
	"FL": "Florida",
	"GA": "Georgia",
	"HI": "Hawaii",
	"ID": "Idaho",
	"IL": "Illinois",
	"IN": "Indiana",
	"IA": "Iowa",
	"KS": "Kansas",
	"KY": "Kentucky",
	"LA": "Louisiana",
	"ME": "Maine",
	"MD": "Maryland",
	"MA": "Massachusetts",
	"MI": "Michigan",
	"MN": "Minnesota",
	"MS": "Mississippi",
	"MO": "Missouri",
	"MT": "Montana",
	"NE": "Nebraska",
	"NV": "Nevada",
	"NH": "New Hampshire",
	"NJ": "New Jersey",
	"NM": "New Mexico",
	"NY": "New York",
	"NC": "North Carolina",
	"ND": "North Dakota",
	"OH": "Ohio",
	"OK": "Oklahoma",
	"OR": "Oregon",
	"PA": "Pennsylvania",
	"RI": "Rhode Island",
	"SC": "South Carolina",
	"SD": "South Dakota",
	"TN": "Tennessee",
	"TX": "Texas",
	"UT": "Utah",
	"VT": "Vermont",
	"VA": "Virginia",
	"WA": "Washington",
	"WV": "West Virginia",
	"WI": "Wisconsin",
	"WY": "Wyoming",
}

// ExpandStateAbbreviation returns the full name for a two-letter US state code.
func ExpandStateAbbreviation(abbrev string) (string, error) {
	name, ok := stateNames[abbrev]
	if !ok {
		return "", &UnknownStateError{Abbrev: abbrev}
	}
	return name, nil
}

// NormalizeUS derives city, county and state from a US province/state cell.
// Rows outside the US get an empty Location.
//
// Recognized shapes:
//
//	"Washington, D.C."      city
//	"Virgin Islands, U.S."  state "Virgin Islands"
//	"Shasta County, CA"     county "Shasta", state "California"
//	"Los Angeles, CA"       city "Los Angeles", state "California"
//	"California"            state
func NormalizeUS(provinceState *string, countryRegion string) (Location, error) {
	if countryRegion != "US" {
		return Location{}, nil
	}
	if provinceState == nil {
		return Location{}, ErrMissingProvince
	}

	ps := *provinceState
	switch ps {
	case washingtonDC:
		return Location{City: strPtr(washingtonDC)}, nil
	case usVirginIslands:
		return Location{State: strPtr(virginIslandsState)}, nil
	}

	if !strings.Contains(ps, ",") {
		return Location{State: strPtr(ps)}, nil
	}

	left, right, found := strings.Cut(ps, ", ")
	if !found {
		// A comma without the following space still names a state code.
		left, right, _ = strings.Cut(ps, ",")
	}
	state, err := ExpandStateAbbreviation(strings.TrimSpace(right))
	if err != nil {
		return Location{}, err
	}

	if strings.Contains(ps, "County") {
		county := strings.ReplaceAll(left, " County", "")
		return Location{County: strPtr(county), State: strPtr(state)}, nil
	}
	return Location{City: strPtr(left), State: strPtr(state)}, nil
}
