// Package runlog records the history of ingest runs in Postgres or SQLite.
package runlog

import (
	"context"
	"time"
)

// Status is the state of a run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Entry is one row of the run log.
type Entry struct {
	ID          string     `json:"id"`
	Feed        string     `json:"feed"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Records     int64      `json:"records"`
	Artifacts   []string   `json:"artifacts,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorClass  string     `json:"error_class,omitempty"`
}

// Result is passed to Complete.
type Result struct {
	Records   int64
	Artifacts []string
}

// Log is the run history store.
type Log interface {
	Migrate(ctx context.Context) error
	Start(ctx context.Context, feed string) (string, error)
	Complete(ctx context.Context, id string, res Result) error
	Fail(ctx context.Context, id string, cause error) error
	// LastSuccess returns nil when the feed has never completed.
	LastSuccess(ctx context.Context, feed string) (*time.Time, error)
	List(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

const defaultListLimit = 50
