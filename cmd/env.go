package main

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/csse-ingest/internal/catalog"
	"github.com/sells-group/csse-ingest/internal/fetcher"
	"github.com/sells-group/csse-ingest/internal/metrics"
	"github.com/sells-group/csse-ingest/internal/monitoring"
	"github.com/sells-group/csse-ingest/internal/pipeline"
	"github.com/sells-group/csse-ingest/internal/resilience"
	"github.com/sells-group/csse-ingest/internal/runlog"
	"github.com/sells-group/csse-ingest/internal/storage"
	"github.com/sells-group/csse-ingest/internal/timeseries"
)

// ingestEnv holds the clients and the pipeline needed by the ingest and
// population commands.
type ingestEnv struct {
	Pipeline *pipeline.Pipeline
	Runs     runlog.Log // may be nil
	Metrics  *metrics.Metrics
}

// Close releases resources held by the environment.
func (e *ingestEnv) Close() {
	if e.Runs != nil {
		_ = e.Runs.Close()
	}
}

// PushMetrics sends the run's metrics to the configured Pushgateway.
func (e *ingestEnv) PushMetrics(ctx context.Context) {
	if err := e.Metrics.Push(context.WithoutCancel(ctx), cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		zap.L().Warn("metrics push failed", zap.Error(err))
	}
}

// initEnv validates the config for mode and builds the pipeline. Callers
// should defer env.Close().
func initEnv(ctx context.Context, mode string) (*ingestEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	m := metrics.New()

	awsCfg, err := initAWS(ctx)
	if err != nil {
		return nil, err
	}

	uploader, err := initUploader(awsCfg)
	if err != nil {
		return nil, err
	}

	runs, err := initRunLog(ctx)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(pipeline.Config{
		Bucket:         cfg.Output.Bucket,
		Prefix:         cfg.Output.Prefix,
		WorkDir:        cfg.Output.WorkDir,
		CrawlerPrefix:  cfg.Crawler.NamePrefix,
		TerritoryMatch: timeseries.TerritoryMatch(cfg.Transform.TerritoryMatch),
	}, initFetcher(), uploader, initCrawlers(awsCfg, m)).WithMetrics(m)

	if runs != nil {
		p.WithRunLog(runs)
	}
	if alerter := monitoring.NewAlerter(cfg.Monitoring); alerter.Enabled() {
		p.WithAlerter(alerter)
	}

	return &ingestEnv{Pipeline: p, Runs: runs, Metrics: m}, nil
}

func initAWS(ctx context.Context) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, eris.Wrap(err, "load aws config")
	}
	return awsCfg, nil
}

func initFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.MaxRetries,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
}

func initUploader(awsCfg aws.Config) (storage.Uploader, error) {
	switch cfg.Output.Backend {
	case "s3":
		retry := resilience.FromRetryConfig(
			cfg.Output.UploadMaxAttempts,
			cfg.Output.UploadInitialBackoffMs,
			cfg.Output.UploadMaxBackoffMs,
		)
		return storage.NewS3Uploader(storage.NewS3Client(awsCfg, cfg.AWS.S3Endpoint), retry), nil
	case "local":
		return &storage.LocalUploader{Root: cfg.Output.LocalRoot}, nil
	default:
		return nil, eris.Errorf("unsupported output backend: %s", cfg.Output.Backend)
	}
}

func initCrawlers(awsCfg aws.Config, obs catalog.Observer) *catalog.Manager {
	svc := catalog.NewGlueService(catalog.NewGlueClient(awsCfg, cfg.AWS.GlueEndpoint))
	return catalog.NewManager(svc, catalog.Config{
		Role:             cfg.Crawler.Role,
		Database:         cfg.Crawler.Database,
		MaxStartAttempts: cfg.Crawler.MaxStartAttempts,
		RetryDelay:       time.Duration(cfg.Crawler.RetryDelaySecs) * time.Second,
		PollInterval:     time.Duration(cfg.Crawler.PollIntervalSecs) * time.Second,
	}, catalog.WithObserver(obs))
}

// initRunLog opens and migrates the run history store. It returns nil for
// driver "none".
func initRunLog(ctx context.Context) (runlog.Log, error) {
	var (
		l   runlog.Log
		err error
	)
	switch cfg.Store.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		l, err = runlog.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		l, err = runlog.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open run log")
	}
	if err := l.Migrate(ctx); err != nil {
		_ = l.Close()
		return nil, eris.Wrap(err, "migrate run log")
	}
	return l, nil
}
