// Package pipeline runs the fetch, transform, write, upload and crawl steps
// for the CSSE time-series feeds and the population table.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/csse-ingest/internal/fetcher"
	"github.com/sells-group/csse-ingest/internal/metrics"
	"github.com/sells-group/csse-ingest/internal/monitoring"
	"github.com/sells-group/csse-ingest/internal/runlog"
	"github.com/sells-group/csse-ingest/internal/storage"
	"github.com/sells-group/csse-ingest/internal/timeseries"
)

// CrawlerManager is the crawl lifecycle used after upload.
type CrawlerManager interface {
	Ensure(ctx context.Context, name, targetPath string) error
	Start(ctx context.Context, name string, poll bool) error
}

// RunRecorder records run history. runlog.Log satisfies it.
type RunRecorder interface {
	Start(ctx context.Context, feed string) (string, error)
	Complete(ctx context.Context, id string, res runlog.Result) error
	Fail(ctx context.Context, id string, cause error) error
}

// Alerter delivers alerts. monitoring.Alerter satisfies it.
type Alerter interface {
	SendAlerts(ctx context.Context, alerts []monitoring.Alert) int
}

// Config holds the naming and layout settings of a Pipeline.
type Config struct {
	Bucket         string
	Prefix         string
	WorkDir        string
	CrawlerPrefix  string
	TerritoryMatch timeseries.TerritoryMatch
}

// Options controls a single Run.
type Options struct {
	Feeds []Feed
	// Merge publishes every feed as one combined file and crawler.
	Merge bool
	// Poll waits for each started crawler to return to READY.
	Poll        bool
	SkipUpload  bool
	SkipCrawler bool
}

// Artifact is one published parquet file.
type Artifact struct {
	Name      string `json:"name"`
	LocalPath string `json:"local_path"`
	Key       string `json:"key"`
	Crawler   string `json:"crawler"`
	Records   int    `json:"records"`
	Uploaded  bool   `json:"uploaded"`
	Crawled   bool   `json:"crawled"`
}

// Result summarizes a run. Records is keyed by feed name.
type Result struct {
	RunID     string         `json:"run_id,omitempty"`
	Records   map[string]int `json:"records"`
	Artifacts []Artifact     `json:"artifacts"`
}

// TotalRecords sums the record counts of every feed.
func (r *Result) TotalRecords() int64 {
	var n int64
	for _, c := range r.Records {
		n += int64(c)
	}
	return n
}

func (r *Result) keys() []string {
	var keys []string
	for _, a := range r.Artifacts {
		if a.Uploaded {
			keys = append(keys, a.Key)
		}
	}
	return keys
}

// Pipeline wires the collaborators of an ingest run.
type Pipeline struct {
	cfg      Config
	fetch    fetcher.Fetcher
	upload   storage.Uploader
	crawlers CrawlerManager
	runs     RunRecorder
	alerter  Alerter
	metrics  *metrics.Metrics
}

// New creates a Pipeline. Run history, alerts and metrics are optional and
// attached with the With methods.
func New(cfg Config, f fetcher.Fetcher, u storage.Uploader, c CrawlerManager) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		fetch:    f,
		upload:   u,
		crawlers: c,
	}
}

// WithRunLog records every run in r.
func (p *Pipeline) WithRunLog(r RunRecorder) *Pipeline {
	p.runs = r
	return p
}

// WithAlerter sends an alert for every failed run.
func (p *Pipeline) WithAlerter(a Alerter) *Pipeline {
	p.alerter = a
	return p
}

// WithMetrics counts records, artifacts and runs in m.
func (p *Pipeline) WithMetrics(m *metrics.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// Run loads every feed in order, then publishes either one combined artifact
// or one artifact per feed.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Feeds) == 0 {
		return nil, eris.New("pipeline: no feeds")
	}
	return p.tracked(ctx, runLabel(opts), func(ctx context.Context, res *Result) error {
		st := stages{poll: opts.Poll, skipUpload: opts.SkipUpload, skipCrawler: opts.SkipCrawler}

		var combined []timeseries.Record
		for _, feed := range opts.Feeds {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "pipeline: cancelled")
			}
			recs, err := p.loadFeed(ctx, feed)
			if err != nil {
				return err
			}
			res.Records[feed.Name()] = len(recs)

			if opts.Merge {
				combined = append(combined, recs...)
				continue
			}
			art, err := publish(ctx, p, feedTarget(p.cfg, feed.Status), recs, st)
			res.Artifacts = append(res.Artifacts, art)
			if err != nil {
				return err
			}
		}

		if opts.Merge {
			art, err := publish(ctx, p, combinedTarget(p.cfg), combined, st)
			res.Artifacts = append(res.Artifacts, art)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Pipeline) loadFeed(ctx context.Context, feed Feed) ([]timeseries.Record, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("feed", feed.Name()))
	start := time.Now()

	body, err := p.fetch.Download(ctx, feed.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: download %s", feed.Name())
	}
	defer body.Close() //nolint:errcheck

	header, rows, err := fetcher.ReadTable(ctx, body)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read %s", feed.Name())
	}

	recs, err := timeseries.TransformTable(header, rows, feed.Status, timeseries.Options{
		TerritoryMatch: p.cfg.TerritoryMatch,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: transform %s", feed.Name())
	}

	if p.metrics != nil {
		p.metrics.RowsTotal.WithLabelValues(feed.Name()).Add(float64(len(rows)))
		p.metrics.RecordsTotal.WithLabelValues(feed.Name()).Add(float64(len(recs)))
	}
	log.Info("pipeline: feed loaded",
		zap.Int("rows", len(rows)),
		zap.Int("records", len(recs)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return recs, nil
}

// tracked wraps fn with run history, failure alerts and run metrics.
func (p *Pipeline) tracked(ctx context.Context, label string, fn func(context.Context, *Result) error) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run", label))
	res := &Result{Records: make(map[string]int)}

	if p.runs != nil {
		id, err := p.runs.Start(ctx, label)
		if err != nil {
			log.Warn("pipeline: failed to record run start", zap.Error(err))
		}
		res.RunID = id
	}

	start := time.Now()
	runErr := fn(ctx, res)
	duration := time.Since(start).Milliseconds()

	// History and alerts still go out when ctx was cancelled mid-run.
	bg := context.WithoutCancel(ctx)

	if runErr != nil {
		log.Error("pipeline: run failed", zap.Int64("duration_ms", duration), zap.Error(runErr))
		if p.runs != nil && res.RunID != "" {
			if err := p.runs.Fail(bg, res.RunID, runErr); err != nil {
				log.Warn("pipeline: failed to record run failure", zap.Error(err))
			}
		}
		if p.alerter != nil {
			p.alerter.SendAlerts(bg, []monitoring.Alert{monitoring.RunFailed(label, res.RunID, runErr)})
		}
		if p.metrics != nil {
			p.metrics.RunsTotal.WithLabelValues("failed").Inc()
		}
		return res, runErr
	}

	if p.runs != nil && res.RunID != "" {
		if err := p.runs.Complete(bg, res.RunID, runlog.Result{
			Records:   res.TotalRecords(),
			Artifacts: res.keys(),
		}); err != nil {
			log.Warn("pipeline: failed to record run completion", zap.Error(err))
		}
	}
	if p.metrics != nil {
		p.metrics.RunsTotal.WithLabelValues("complete").Inc()
		p.metrics.LastSuccessEpoch.SetToCurrentTime()
	}
	log.Info("pipeline: run complete",
		zap.Int64("records", res.TotalRecords()),
		zap.Int("artifacts", len(res.Artifacts)),
		zap.Int64("duration_ms", duration),
	)
	return res, nil
}
