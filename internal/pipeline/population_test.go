package pipeline

import (
	"context"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/csse-ingest/internal/population"
)

const populationCSV = "id,country,population,yearly_change,net_change,density_p_sq_km,land_area_sq_km,migrants_net,fert_rate,med_age,urban_pop,world_share\n" +
	"1,China,1439323776,0.39,5540090,153,9388211,-348399,1.7,38,0.61,0.1847\n" +
	"2,Holy See,801,0.25,2,2003,0,,N.A.,N.A.,N.A.,0\n"

func TestRunPopulation(t *testing.T) {
	cfg := testConfig(t)
	url := "https://example.com/world_pop2020.csv"

	f := &mockFetcher{}
	f.On("Download", mock.Anything, url).Return(populationCSV, nil).Once()
	u := &mockUploader{}
	u.On("Upload", mock.Anything, cfg.WorkDir+"/population.parquet", bucket, "Population/population.parquet").Return(nil).Once()
	c := &mockCrawlers{}
	c.On("Ensure", mock.Anything, "population", "s3://"+bucket+"/Population").Return(nil).Once()
	c.On("Start", mock.Anything, "population", true).Return(nil).Once()

	res, err := New(cfg, f, u, c).RunPopulation(context.Background(), PopulationOptions{
		URL:  url,
		Key:  "Population/population.parquet",
		Poll: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records["population"])
	require.Len(t, res.Artifacts, 1)
	assert.True(t, res.Artifacts[0].Crawled)

	rows, err := parquet.ReadFile[population.Row](res.Artifacts[0].LocalPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[1].MedianAge)

	u.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestRunPopulation_RequiresURLAndKey(t *testing.T) {
	p := New(testConfig(t), &mockFetcher{}, &mockUploader{}, &mockCrawlers{})
	_, err := p.RunPopulation(context.Background(), PopulationOptions{Key: "Population/population.parquet"})
	assert.Error(t, err)
}

func TestRunPopulation_DecodeError(t *testing.T) {
	f := &mockFetcher{}
	f.On("Download", mock.Anything, mock.Anything).Return("", nil).Once()

	_, err := New(testConfig(t), f, &mockUploader{}, &mockCrawlers{}).RunPopulation(context.Background(), PopulationOptions{
		URL: "https://example.com/p.csv",
		Key: "Population/population.parquet",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: decode population")
}
