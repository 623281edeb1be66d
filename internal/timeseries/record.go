// Package timeseries reshapes wide CSSE time-series tables into long-format records.
package timeseries

import (
	"time"

	"github.com/rotisserie/eris"
)

// Status identifies which CSSE feed a record came from.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusDeaths    Status = "deaths"
	StatusRecovered Status = "recovered"
)

// Statuses lists every known feed status in publication order.
var Statuses = []Status{StatusConfirmed, StatusDeaths, StatusRecovered}

// String returns the lowercase status name.
func (s Status) String() string { return string(s) }

// ParseStatus converts "confirmed", "deaths" or "recovered" into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusConfirmed, StatusDeaths, StatusRecovered:
		return Status(s), nil
	default:
		return "", eris.Errorf("unknown status: %q (valid: confirmed, deaths, recovered)", s)
	}
}

// Record is one (location, date) observation. Optional fields are nil when absent.
type Record struct {
	Status        string    `parquet:"status"`
	ProvinceState *string   `parquet:"province_state"`
	CountryRegion string    `parquet:"country_region"`
	City          *string   `parquet:"city"`
	County        *string   `parquet:"county"`
	State         *string   `parquet:"state"`
	Lat           *float64  `parquet:"lat"`
	Lon           *float64  `parquet:"lon"`
	Date          time.Time `parquet:"date,timestamp(millisecond)"`
	Count         int64     `parquet:"count"`
}

// Location is the US subdivision derived from a province/state cell.
type Location struct {
	City   *string
	County *string
	State  *string
}

func strPtr(s string) *string { return &s }
