package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/csse-ingest/internal/population"
)

// PopulationOptions controls RunPopulation.
type PopulationOptions struct {
	URL         string
	Key         string
	Crawler     string
	Poll        bool
	SkipUpload  bool
	SkipCrawler bool
}

// RunPopulation publishes the world population table under its own key and
// crawler.
func (p *Pipeline) RunPopulation(ctx context.Context, opts PopulationOptions) (*Result, error) {
	if opts.URL == "" || opts.Key == "" {
		return nil, eris.New("pipeline: population url and key are required")
	}
	const name = "population"
	crawler := opts.Crawler
	if crawler == "" {
		crawler = name
	}
	t := target{
		name:    name,
		file:    filepath.Join(p.cfg.WorkDir, name+".parquet"),
		key:     opts.Key,
		crawler: crawler,
	}

	return p.tracked(ctx, name, func(ctx context.Context, res *Result) error {
		body, err := p.fetch.Download(ctx, opts.URL)
		if err != nil {
			return eris.Wrap(err, "pipeline: download population")
		}
		defer body.Close() //nolint:errcheck

		rows, err := population.Decode(body)
		if err != nil {
			return eris.Wrap(err, "pipeline: decode population")
		}
		res.Records[name] = len(rows)
		if p.metrics != nil {
			p.metrics.RecordsTotal.WithLabelValues(name).Add(float64(len(rows)))
		}

		art, err := publish(ctx, p, t, rows, stages{
			poll:        opts.Poll,
			skipUpload:  opts.SkipUpload,
			skipCrawler: opts.SkipCrawler,
		})
		res.Artifacts = append(res.Artifacts, art)
		return err
	})
}
