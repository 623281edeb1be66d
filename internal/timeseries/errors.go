package timeseries

import (
	"errors"
	"fmt"
)

// ErrMissingProvince is returned when a US row has no province/state cell.
var ErrMissingProvince = errors.New("timeseries: US row has no province/state")

// HeaderError reports a header cell that is not a valid date. The whole
// column-to-date mapping is unusable when this happens.
type HeaderError struct {
	Column int
	Value  string
	Err    error
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("timeseries: header column %d: could not parse %q", e.Column, e.Value)
}

func (e *HeaderError) Unwrap() error { return e.Err }

// UnknownStateError reports a two-letter code outside the 50 US states.
type UnknownStateError struct {
	Abbrev string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("timeseries: %q is not a state", e.Abbrev)
}

// RowError wraps a failure on a single data row. Row is 1-based within the
// data rows (the header is not counted).
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("timeseries: row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("timeseries: %v", e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
