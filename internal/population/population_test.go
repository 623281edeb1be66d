package population

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/csse-ingest/internal/columnar"
	"github.com/sells-group/csse-ingest/internal/fetcher"
)

const header = "id,country,population,yearly_change,net_change,density_p_sq_km,land_area_sq_km,migrants_net,fert_rate,med_age,urban_pop,world_share\n"

func TestDecode(t *testing.T) {
	in := header +
		"1,China,1439323776,0.39,5540090,153,9388211,-348399,1.7,38,0.61,0.1847\n" +
		"2,Holy See,801,0.25,2,2003,0,,N.A.,N.A.,N.A.,0\n"

	rows, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	china := rows[0]
	assert.Equal(t, int32(1), china.ID)
	require.NotNil(t, china.Country)
	assert.Equal(t, "China", *china.Country)
	assert.Equal(t, int32(1439323776), china.Population)
	assert.InDelta(t, 0.39, china.YearlyChange, 1e-9)
	require.NotNil(t, china.MigrantsNet)
	assert.Equal(t, int32(-348399), *china.MigrantsNet)
	require.NotNil(t, china.FertilityRate)
	assert.InDelta(t, 1.7, *china.FertilityRate, 1e-6)
	require.NotNil(t, china.MedianAge)
	assert.Equal(t, int32(38), *china.MedianAge)

	holySee := rows[1]
	assert.Nil(t, holySee.MigrantsNet)
	assert.Nil(t, holySee.FertilityRate)
	assert.Nil(t, holySee.MedianAge)
	assert.Nil(t, holySee.UrbanPop)
	require.NotNil(t, holySee.WorldShare)
	assert.Zero(t, *holySee.WorldShare)
}

func TestDecode_EmptyCountry(t *testing.T) {
	rows, err := Decode(strings.NewReader(header + "3,,10,0,0,1,1,,,,,\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Country)
}

func TestDecode_StrictColumnInvalid(t *testing.T) {
	in := header + "1,China,1439323776,0.39,5540090,153,9388211,N.A.,1.7,38,0.61,0.1847\n"
	_, err := Decode(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "population: decode line 2")
}

func TestDecode_RequiredColumnInvalid(t *testing.T) {
	in := header + "x,China,1,0,0,1,1,,,,,\n"
	_, err := Decode(strings.NewReader(in))
	require.Error(t, err)
}

func TestDecode_Empty(t *testing.T) {
	_, err := Decode(strings.NewReader(""))
	assert.ErrorIs(t, err, fetcher.ErrEmptyTable)
}

func TestDecode_HeaderOnly(t *testing.T) {
	rows, err := Decode(strings.NewReader(header))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRows_Parquet(t *testing.T) {
	rows, err := Decode(strings.NewReader(header + "2,Holy See,801,0.25,2,2003,0,,N.A.,N.A.,N.A.,0\n"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "population.parquet")
	require.NoError(t, columnar.WriteFile(path, rows))

	got, err := parquet.ReadFile[Row](path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Country)
	assert.Equal(t, "Holy See", *got[0].Country)
	assert.Nil(t, got[0].FertilityRate)
	assert.Equal(t, int32(801), got[0].Population)
}
