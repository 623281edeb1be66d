package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/csse-ingest/internal/resilience"
)

// Pool is the subset of pgxpool.Pool used by PostgresLog.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLog implements Log on a pgx pool.
type PostgresLog struct {
	pool    Pool
	closeFn func()
}

// NewPostgres connects to dsn.
func NewPostgres(ctx context.Context, dsn string) (*PostgresLog, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: connect postgres")
	}
	return &PostgresLog{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close is a no-op.
func NewPostgresFromPool(pool Pool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ingest_runs (
	id           TEXT PRIMARY KEY,
	feed         TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	records      BIGINT NOT NULL DEFAULT 0,
	artifacts    JSONB,
	error        TEXT,
	error_class  TEXT
);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_feed_started ON ingest_runs(feed, started_at DESC);
`

// Migrate creates the run table.
func (l *PostgresLog) Migrate(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "runlog: migrate")
	}
	return nil
}

// Start records the beginning of a run and returns its ID.
func (l *PostgresLog) Start(ctx context.Context, feed string) (string, error) {
	id := uuid.NewString()
	_, err := l.pool.Exec(ctx,
		`INSERT INTO ingest_runs (id, feed, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, feed, string(StatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "runlog: start run for %s", feed)
	}
	return id, nil
}

// Complete marks a run as successful.
func (l *PostgresLog) Complete(ctx context.Context, id string, res Result) error {
	artifacts, err := json.Marshal(res.Artifacts)
	if err != nil {
		return eris.Wrap(err, "runlog: marshal artifacts")
	}
	_, err = l.pool.Exec(ctx,
		`UPDATE ingest_runs SET status = $1, completed_at = $2, records = $3, artifacts = $4 WHERE id = $5`,
		string(StatusComplete), time.Now().UTC(), res.Records, artifacts, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", id)
	}
	return nil
}

// Fail marks a run as failed, recording the error and whether it was transient.
func (l *PostgresLog) Fail(ctx context.Context, id string, cause error) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE ingest_runs SET status = $1, completed_at = $2, error = $3, error_class = $4 WHERE id = $5`,
		string(StatusFailed), time.Now().UTC(), cause.Error(), resilience.ClassifyError(cause), id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", id)
	}
	return nil
}

// LastSuccess returns the start time of the latest completed run of feed.
func (l *PostgresLog) LastSuccess(ctx context.Context, feed string) (*time.Time, error) {
	var t time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT started_at FROM ingest_runs WHERE feed = $1 AND status = 'complete' ORDER BY started_at DESC LIMIT 1`,
		feed,
	).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "runlog: last success for %s", feed)
	}
	return &t, nil
}

// List returns the most recent runs, newest first.
func (l *PostgresLog) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, feed, status, started_at, completed_at, records, artifacts, error, error_class
		 FROM ingest_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			status     string
			artifacts  []byte
			errStr     *string
			errorClass *string
		)
		if err := rows.Scan(&e.ID, &e.Feed, &status, &e.StartedAt, &e.CompletedAt, &e.Records, &artifacts, &errStr, &errorClass); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		e.Status = Status(status)
		if errStr != nil {
			e.Error = *errStr
		}
		if errorClass != nil {
			e.ErrorClass = *errorClass
		}
		if len(artifacts) > 0 {
			if err := json.Unmarshal(artifacts, &e.Artifacts); err != nil {
				return nil, eris.Wrapf(err, "runlog: decode artifacts for run %s", e.ID)
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "runlog: list iterate")
}

// Close releases the pool if this log opened it.
func (l *PostgresLog) Close() error {
	if l.closeFn != nil {
		l.closeFn()
	}
	return nil
}
