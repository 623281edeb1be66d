package timeseries

import (
	"strings"
	"time"
)

// IdentifierColumns is the number of leading identifier columns in a wide
// table: Province/State, Country/Region, Lat, Long.
const IdentifierColumns = 4

// headerDateLayout is month/day/two-digit year; leading zeros are optional.
const headerDateLayout = "1/2/06"

// ParseDateHeader returns the dates named by the header cells after the
// identifier prefix, in column order. Any unparseable cell fails the whole
// header.
func ParseDateHeader(header []string) ([]time.Time, error) {
	if len(header) < IdentifierColumns {
		return nil, &HeaderError{
			Column: len(header),
			Value:  strings.Join(header, ","),
		}
	}

	dates := make([]time.Time, 0, len(header)-IdentifierColumns)
	for i, cell := range header[IdentifierColumns:] {
		d, err := time.Parse(headerDateLayout, strings.TrimSpace(cell))
		if err != nil {
			return nil, &HeaderError{Column: IdentifierColumns + i, Value: cell, Err: err}
		}
		dates = append(dates, d)
	}
	return dates, nil
}
