// Package config loads csse-ingest settings from config.yaml and CSSE_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Feeds      FeedsConfig      `yaml:"feeds" mapstructure:"feeds"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	AWS        AWSConfig        `yaml:"aws" mapstructure:"aws"`
	Crawler    CrawlerConfig    `yaml:"crawler" mapstructure:"crawler"`
	Transform  TransformConfig  `yaml:"transform" mapstructure:"transform"`
	Population PopulationConfig `yaml:"population" mapstructure:"population"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchConfig configures the HTTP fetcher.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// FeedsConfig selects the time-series snapshots to ingest.
type FeedsConfig struct {
	// BaseURL is the directory holding time_series_19-covid-<Status>.csv.
	BaseURL  string   `yaml:"base_url" mapstructure:"base_url"`
	Statuses []string `yaml:"statuses" mapstructure:"statuses"`
	Merge    bool     `yaml:"merge" mapstructure:"merge"`
}

// OutputConfig configures where parquet files are written and published.
type OutputConfig struct {
	// Backend is "s3" or "local".
	Backend   string `yaml:"backend" mapstructure:"backend"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Prefix    string `yaml:"prefix" mapstructure:"prefix"`
	WorkDir   string `yaml:"work_dir" mapstructure:"work_dir"`
	LocalRoot string `yaml:"local_root" mapstructure:"local_root"`

	UploadMaxAttempts      int `yaml:"upload_max_attempts" mapstructure:"upload_max_attempts"`
	UploadInitialBackoffMs int `yaml:"upload_initial_backoff_ms" mapstructure:"upload_initial_backoff_ms"`
	UploadMaxBackoffMs     int `yaml:"upload_max_backoff_ms" mapstructure:"upload_max_backoff_ms"`
}

// AWSConfig configures the AWS SDK clients.
type AWSConfig struct {
	Region       string `yaml:"region" mapstructure:"region"`
	S3Endpoint   string `yaml:"s3_endpoint" mapstructure:"s3_endpoint"`
	GlueEndpoint string `yaml:"glue_endpoint" mapstructure:"glue_endpoint"`
}

// CrawlerConfig configures the catalog crawlers.
type CrawlerConfig struct {
	NamePrefix       string `yaml:"name_prefix" mapstructure:"name_prefix"`
	Role             string `yaml:"role" mapstructure:"role"`
	Database         string `yaml:"database" mapstructure:"database"`
	MaxStartAttempts int    `yaml:"max_start_attempts" mapstructure:"max_start_attempts"`
	RetryDelaySecs   int    `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
	PollIntervalSecs int    `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	Poll             bool   `yaml:"poll" mapstructure:"poll"`
	// Skip leaves crawlers untouched after upload; no role is needed then.
	Skip bool `yaml:"skip" mapstructure:"skip"`
}

// TransformConfig tunes the wide-to-long transform.
type TransformConfig struct {
	// TerritoryMatch is "name" or "coordinates".
	TerritoryMatch string `yaml:"territory_match" mapstructure:"territory_match"`
}

// PopulationConfig configures the world population feed.
type PopulationConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Key     string `yaml:"key" mapstructure:"key"`
	Crawler string `yaml:"crawler" mapstructure:"crawler"`
}

// StoreConfig configures the run-history backend.
type StoreConfig struct {
	// Driver is "sqlite", "postgres" or "none".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MonitoringConfig configures failure alerts.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	StaleRunHours        int     `yaml:"stale_run_hours" mapstructure:"stale_run_hours"`
}

// MetricsConfig configures Prometheus metric export.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CSSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fetch.user_agent", "csse-ingest/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("feeds.base_url", "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series")
	v.SetDefault("feeds.statuses", []string{"confirmed", "deaths", "recovered"})
	v.SetDefault("feeds.merge", true)
	v.SetDefault("output.backend", "s3")
	v.SetDefault("output.bucket", "")
	v.SetDefault("output.prefix", "csse_covid_19_time_series")
	v.SetDefault("output.work_dir", "/tmp/csse-ingest")
	v.SetDefault("output.local_root", "./out")
	v.SetDefault("output.upload_max_attempts", 3)
	v.SetDefault("output.upload_initial_backoff_ms", 500)
	v.SetDefault("output.upload_max_backoff_ms", 10000)
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.s3_endpoint", "")
	v.SetDefault("aws.glue_endpoint", "")
	v.SetDefault("crawler.name_prefix", "covid19")
	v.SetDefault("crawler.role", "")
	v.SetDefault("crawler.database", "covid19")
	v.SetDefault("crawler.max_start_attempts", 20)
	v.SetDefault("crawler.retry_delay_secs", 10)
	v.SetDefault("crawler.poll_interval_secs", 10)
	v.SetDefault("crawler.poll", true)
	v.SetDefault("crawler.skip", false)
	v.SetDefault("transform.territory_match", "name")
	v.SetDefault("population.url", "")
	v.SetDefault("population.key", "Population/population.parquet")
	v.SetDefault("population.crawler", "population")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "csse-ingest.db")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.stale_run_hours", 6)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "csse_ingest")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "ingest",
// "population", "crawler" or "runs".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "ingest":
		problems = append(problems, c.validateOutput()...)
		problems = append(problems, c.validateCrawler(c.Crawler.Skip)...)
		if len(c.Feeds.Statuses) == 0 {
			problems = append(problems, "feeds.statuses must not be empty")
		}
		switch c.Transform.TerritoryMatch {
		case "name", "coordinates":
		default:
			problems = append(problems, fmt.Sprintf("transform.territory_match %q must be name or coordinates", c.Transform.TerritoryMatch))
		}
		problems = append(problems, c.validateStore(false)...)
	case "population":
		problems = append(problems, c.validateOutput()...)
		problems = append(problems, c.validateCrawler(c.Crawler.Skip)...)
		if c.Population.URL == "" {
			problems = append(problems, "population.url is required")
		}
		problems = append(problems, c.validateStore(false)...)
	case "crawler":
		problems = append(problems, c.validateCrawler(false)...)
	case "runs":
		problems = append(problems, c.validateStore(true)...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateOutput() []string {
	var problems []string
	switch c.Output.Backend {
	case "s3", "local":
		if c.Output.Bucket == "" {
			problems = append(problems, "output.bucket is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("output.backend %q must be s3 or local", c.Output.Backend))
	}
	if c.Output.WorkDir == "" {
		problems = append(problems, "output.work_dir is required")
	}
	return problems
}

// validateCrawler checks the crawler settings. With skip set, only the
// upload path runs and the service role may be empty.
func (c *Config) validateCrawler(skip bool) []string {
	var problems []string
	if !skip && c.Crawler.Role == "" {
		problems = append(problems, "crawler.role is required")
	}
	if c.Crawler.MaxStartAttempts <= 0 {
		problems = append(problems, "crawler.max_start_attempts must be > 0")
	}
	if c.Crawler.RetryDelaySecs <= 0 {
		problems = append(problems, "crawler.retry_delay_secs must be > 0")
	}
	if c.Crawler.PollIntervalSecs <= 0 {
		problems = append(problems, "crawler.poll_interval_secs must be > 0")
	}
	return problems
}

func (c *Config) validateStore(required bool) []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required"}
		}
	case "none":
		if required {
			return []string{"store.driver none has no run history"}
		}
	default:
		return []string{fmt.Sprintf("store.driver %q must be sqlite, postgres or none", c.Store.Driver)}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
