// Package metrics holds the Prometheus collectors for ingest runs and pushes
// them to a Pushgateway when one is configured.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rotisserie/eris"

	"github.com/sells-group/csse-ingest/internal/catalog"
)

const namespace = "csse_ingest"

// Metrics holds the counters and gauges for one process. It implements
// catalog.Observer.
type Metrics struct {
	registry *prometheus.Registry

	RecordsTotal     *prometheus.CounterVec // labels: status
	RowsTotal        *prometheus.CounterVec // labels: status
	ArtifactsTotal   prometheus.Counter
	RunsTotal        *prometheus.CounterVec // labels: outcome={complete,failed}
	CrawlersCreated  prometheus.Counter
	StartAttempts    *prometheus.CounterVec // labels: result={started,conflict}
	CrawlerPolls     *prometheus.CounterVec // labels: state
	LastSuccessEpoch prometheus.Gauge
}

var _ catalog.Observer = (*Metrics)(nil)

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Long-format records produced, by case status.",
		}, []string{"status"}),
		RowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Wide-table data rows read, by case status.",
		}, []string{"status"}),
		ArtifactsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_published_total",
			Help:      "Parquet files uploaded to object storage.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		CrawlersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawlers_created_total",
			Help:      "Crawlers created because they did not exist.",
		}),
		StartAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawler_start_attempts_total",
			Help:      "Crawler start requests by result.",
		}, []string{"result"}),
		CrawlerPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawler_polls_total",
			Help:      "Crawler state polls by observed state.",
		}, []string{"state"}),
		LastSuccessEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	m.registry.MustRegister(
		m.RecordsTotal,
		m.RowsTotal,
		m.ArtifactsTotal,
		m.RunsTotal,
		m.CrawlersCreated,
		m.StartAttempts,
		m.CrawlerPolls,
		m.LastSuccessEpoch,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// CrawlerCreated implements catalog.Observer.
func (m *Metrics) CrawlerCreated(string) { m.CrawlersCreated.Inc() }

// StartAttempt implements catalog.Observer.
func (m *Metrics) StartAttempt(_ string, conflict bool) {
	if conflict {
		m.StartAttempts.WithLabelValues("conflict").Inc()
		return
	}
	m.StartAttempts.WithLabelValues("started").Inc()
}

// Polled implements catalog.Observer.
func (m *Metrics) Polled(_ string, state catalog.State) {
	m.CrawlerPolls.WithLabelValues(string(state)).Inc()
}

// Push sends the registry to a Pushgateway under job. An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return eris.Wrapf(err, "metrics: push to %s", url)
	}
	return nil
}
