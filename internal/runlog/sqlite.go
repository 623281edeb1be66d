package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/csse-ingest/internal/resilience"
)

// SQLiteLog implements Log using modernc.org/sqlite.
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	return &SQLiteLog{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ingest_runs (
	id           TEXT PRIMARY KEY,
	feed         TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	completed_at TEXT,
	records      INTEGER NOT NULL DEFAULT 0,
	artifacts    TEXT,
	error        TEXT,
	error_class  TEXT
);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_feed_started ON ingest_runs(feed, started_at);
`

// Migrate creates the run table.
func (l *SQLiteLog) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "runlog: migrate sqlite")
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Start records the beginning of a run and returns its ID.
func (l *SQLiteLog) Start(ctx context.Context, feed string) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, feed, status, started_at) VALUES (?, ?, ?, ?)`,
		id, feed, string(StatusRunning), formatTime(time.Now()),
	)
	if err != nil {
		return "", eris.Wrapf(err, "runlog: start run for %s", feed)
	}
	return id, nil
}

// Complete marks a run as successful.
func (l *SQLiteLog) Complete(ctx context.Context, id string, res Result) error {
	artifacts, err := json.Marshal(res.Artifacts)
	if err != nil {
		return eris.Wrap(err, "runlog: marshal artifacts")
	}
	r, err := l.db.ExecContext(ctx,
		`UPDATE ingest_runs SET status = ?, completed_at = ?, records = ?, artifacts = ? WHERE id = ?`,
		string(StatusComplete), formatTime(time.Now()), res.Records, string(artifacts), id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", id)
	}
	return checkRowsAffected(r, id)
}

// Fail marks a run as failed, recording the error and whether it was transient.
func (l *SQLiteLog) Fail(ctx context.Context, id string, cause error) error {
	r, err := l.db.ExecContext(ctx,
		`UPDATE ingest_runs SET status = ?, completed_at = ?, error = ?, error_class = ? WHERE id = ?`,
		string(StatusFailed), formatTime(time.Now()), cause.Error(), resilience.ClassifyError(cause), id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", id)
	}
	return checkRowsAffected(r, id)
}

// LastSuccess returns the start time of the latest completed run of feed.
func (l *SQLiteLog) LastSuccess(ctx context.Context, feed string) (*time.Time, error) {
	var raw string
	err := l.db.QueryRowContext(ctx,
		`SELECT started_at FROM ingest_runs WHERE feed = ? AND status = 'complete' ORDER BY started_at DESC LIMIT 1`,
		feed,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: last success for %s", feed)
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: parse started_at %q", raw)
	}
	return &t, nil
}

// List returns the most recent runs, newest first.
func (l *SQLiteLog) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, feed, status, started_at, completed_at, records, artifacts, error, error_class
		 FROM ingest_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list")
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var (
			e                                          Entry
			status, startedAt                          string
			completedAt, artifacts, errStr, errorClass sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Feed, &status, &startedAt, &completedAt, &e.Records, &artifacts, &errStr, &errorClass); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		e.Status = Status(status)
		if e.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, eris.Wrapf(err, "runlog: parse started_at %q", startedAt)
		}
		if completedAt.Valid {
			t, err := time.Parse(timeLayout, completedAt.String)
			if err != nil {
				return nil, eris.Wrapf(err, "runlog: parse completed_at %q", completedAt.String)
			}
			e.CompletedAt = &t
		}
		if artifacts.Valid {
			if err := json.Unmarshal([]byte(artifacts.String), &e.Artifacts); err != nil {
				return nil, eris.Wrapf(err, "runlog: decode artifacts for run %s", e.ID)
			}
		}
		e.Error = errStr.String
		e.ErrorClass = errorClass.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "runlog: list iterate")
}

// Close closes the database.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

func checkRowsAffected(r sql.Result, id string) error {
	n, err := r.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "runlog: rows affected")
	}
	if n == 0 {
		return eris.Errorf("runlog: run %s not found", id)
	}
	return nil
}
