// Package monitoring evaluates run history and posts alerts to a webhook.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/csse-ingest/internal/runlog"
)

// Snapshot is a point-in-time view of recent ingest runs.
type Snapshot struct {
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	FailRate     float64 `json:"fail_rate"`
	RecordsTotal int64   `json:"records_total"`

	// StaleRuns are runs still marked running after the stale threshold,
	// usually a crawler that never returned to READY.
	StaleRuns []runlog.Entry `json:"stale_runs,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister abstracts the run log methods needed by the collector.
type RunLister interface {
	List(ctx context.Context, limit int) ([]runlog.Entry, error)
}

// Collector gathers a Snapshot from the run log.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new snapshot collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect summarizes runs started within the lookback window. Runs still
// running after staleHours are reported as stale.
func (c *Collector) Collect(ctx context.Context, lookbackHours, staleHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	entries, err := c.runs.List(ctx, 10000)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	staleCutoff := now.Add(-time.Duration(staleHours) * time.Hour)
	for _, e := range entries {
		if e.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		snap.RecordsTotal += e.Records
		switch e.Status {
		case runlog.StatusComplete:
			snap.RunsComplete++
		case runlog.StatusFailed:
			snap.RunsFailed++
		case runlog.StatusRunning:
			snap.RunsRunning++
			if staleHours > 0 && e.StartedAt.Before(staleCutoff) {
				snap.StaleRuns = append(snap.StaleRuns, e)
			}
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	return snap, nil
}
