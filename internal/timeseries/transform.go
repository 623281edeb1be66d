package timeseries

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Options tunes the transform.
type Options struct {
	// TerritoryMatch selects the territory remap key. Empty means MatchByName.
	TerritoryMatch TerritoryMatch
}

// Transform explodes one wide row into one Record per date column. Record i
// carries dates[i] and the count from the i-th date cell.
func Transform(dates []time.Time, row []string, status Status, opts Options) ([]Record, error) {
	if len(row) < IdentifierColumns+len(dates) {
		return nil, &RowError{Err: eris.Errorf("expected %d cells, got %d", IdentifierColumns+len(dates), len(row))}
	}

	var provinceState *string
	if ps := row[0]; ps != "" {
		provinceState = &ps
	}
	countryRegion := row[1]
	rawLat, rawLon := row[2], row[3]

	loc, err := NormalizeUS(provinceState, countryRegion)
	if err != nil {
		return nil, &RowError{Err: err}
	}

	lat, err := parseCoordinate(rawLat)
	if err != nil {
		return nil, &RowError{Err: eris.Wrapf(err, "parse lat %q", rawLat)}
	}
	lon, err := parseCoordinate(rawLon)
	if err != nil {
		return nil, &RowError{Err: eris.Wrapf(err, "parse long %q", rawLon)}
	}

	counts := row[IdentifierColumns:]
	records := make([]Record, 0, len(dates))
	for i, date := range dates {
		rec := Record{
			Status:        string(status),
			ProvinceState: provinceState,
			CountryRegion: countryRegion,
			City:          loc.City,
			County:        loc.County,
			State:         loc.State,
			Lat:           lat,
			Lon:           lon,
			Date:          date,
			Count:         parseCount(counts[i]),
		}

		if opts.TerritoryMatch == MatchByCoordinates {
			RemapTerritoryByCoordinates(&rec, rawLat, rawLon)
		} else {
			RemapTerritory(&rec)
		}
		RenameCountry(&rec)

		records = append(records, rec)
	}
	return records, nil
}

// TransformTable parses the header and transforms every data row, yielding
// len(rows) * len(dates) records in row-major order.
func TransformTable(header []string, rows [][]string, status Status, opts Options) ([]Record, error) {
	dates, err := ParseDateHeader(header)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows)*len(dates))
	for i, row := range rows {
		recs, err := Transform(dates, row, status, opts)
		if err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				rowErr.Row = i + 1
				return nil, rowErr
			}
			return nil, &RowError{Row: i + 1, Err: err}
		}
		records = append(records, recs...)
	}
	return records, nil
}

// parseCount returns 0 for empty or non-integer cells.
func parseCount(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseCoordinate maps an empty cell to nil rather than zero.
func parseCoordinate(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
