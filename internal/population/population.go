// Package population decodes the world population table into typed rows.
package population

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/csse-ingest/internal/fetcher"
)

// Row is one country of the world population table. Pointer fields are
// optional: an empty cell, or for lenient columns an unparseable one, is nil.
type Row struct {
	ID            int32    `csv:"id" parquet:"id"`
	Country       *string  `csv:"country,omitempty" parquet:"country"`
	Population    int32    `csv:"population" parquet:"population"`
	YearlyChange  float64  `csv:"yearly_change" parquet:"yearly_change"`
	NetChange     int32    `csv:"net_change" parquet:"net_change"`
	Density       float32  `csv:"density_p_sq_km" parquet:"density_p_sq_km"`
	LandArea      int32    `csv:"land_area_sq_km" parquet:"land_area_sq_km"`
	MigrantsNet   *int32   `csv:"migrants_net,omitempty" parquet:"migrants_net"`
	FertilityRate *float32 `csv:"fert_rate,omitempty" parquet:"fert_rate"`
	MedianAge     *int32   `csv:"med_age,omitempty" parquet:"med_age"`
	UrbanPop      *float32 `csv:"urban_pop,omitempty" parquet:"urban_pop"`
	WorldShare    *float32 `csv:"world_share,omitempty" parquet:"world_share"`
}

// lenient columns decode invalid values as absent instead of failing.
// migrants_net is optional but strict.
var lenient = map[string]func(string) error{
	"fert_rate":   parseFloat32,
	"med_age":     parseInt32,
	"urban_pop":   parseFloat32,
	"world_share": parseFloat32,
}

func parseFloat32(s string) error {
	_, err := strconv.ParseFloat(s, 32)
	return err
}

func parseInt32(s string) error {
	_, err := strconv.ParseInt(s, 10, 32)
	return err
}

// Decode reads every row of the population CSV. The first line must be
// the header.
func Decode(r io.Reader) ([]Row, error) {
	dec, err := csvutil.NewDecoder(fetcher.NewCSVReader(r, fetcher.CSVOptions{Strict: true}))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fetcher.ErrEmptyTable
		}
		return nil, eris.Wrap(err, "population: read header")
	}
	dec.Map = blankInvalid

	var rows []Row
	for {
		var row Row
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "population: decode line %d", len(rows)+2)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// blankInvalid blanks out unparseable cells in lenient columns so csvutil
// leaves the pointer nil.
func blankInvalid(field, column string, _ any) string {
	parse, ok := lenient[column]
	if !ok {
		return field
	}
	s := strings.TrimSpace(field)
	if parse(s) != nil {
		return ""
	}
	return s
}
