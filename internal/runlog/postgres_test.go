package runlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresLog(t *testing.T) (*PostgresLog, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresFromPool(mock), mock
}

func TestPostgres_Migrate(t *testing.T) {
	l, mock := newMockPostgresLog(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ingest_runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, l.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Start(t *testing.T) {
	l, mock := newMockPostgresLog(t)
	mock.ExpectExec(`INSERT INTO ingest_runs`).
		WithArgs(pgxmock.AnyArg(), "combined", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := l.Start(context.Background(), "combined")
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Start_Error(t *testing.T) {
	l, mock := newMockPostgresLog(t)
	mock.ExpectExec(`INSERT INTO ingest_runs`).
		WillReturnError(errors.New("connection refused"))

	_, err := l.Start(context.Background(), "combined")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start run for combined")
}

func TestPostgres_Complete(t *testing.T) {
	l, mock := newMockPostgresLog(t)
	mock.ExpectExec(`UPDATE ingest_runs SET status = \$1, completed_at = \$2, records = \$3, artifacts = \$4`).
		WithArgs("complete", pgxmock.AnyArg(), int64(42), []byte(`["s3://b/k"]`), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, l.Complete(context.Background(), "run-1", Result{Records: 42, Artifacts: []string{"s3://b/k"}}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Fail(t *testing.T) {
	l, mock := newMockPostgresLog(t)
	mock.ExpectExec(`UPDATE ingest_runs SET status = \$1, completed_at = \$2, error = \$3, error_class = \$4`).
		WithArgs("failed", pgxmock.AnyArg(), "bad header", "permanent", "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, l.Fail(context.Background(), "run-1", errors.New("bad header")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LastSuccess(t *testing.T) {
	l, mock := newMockPostgresLog(t)
	ts := time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT started_at FROM ingest_runs`).
		WithArgs("combined").
		WillReturnRows(pgxmock.NewRows([]string{"started_at"}).AddRow(ts))

	got, err := l.LastSuccess(context.Background(), "combined")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ts, *got)
}

func TestPostgres_LastSuccess_None(t *testing.T) {
	l, mock := newMockPostgresLog(t)
	mock.ExpectQuery(`SELECT started_at FROM ingest_runs`).
		WithArgs("combined").
		WillReturnError(pgx.ErrNoRows)

	got, err := l.LastSuccess(context.Background(), "combined")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgres_List(t *testing.T) {
	l, mock := newMockPostgresLog(t)
	started := time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(time.Minute)
	errMsg := "crawler stuck"
	errClass := "permanent"

	rows := pgxmock.NewRows([]string{"id", "feed", "status", "started_at", "completed_at", "records", "artifacts", "error", "error_class"}).
		AddRow("r2", "combined", "failed", started, &completed, int64(0), []byte(nil), &errMsg, &errClass).
		AddRow("r1", "combined", "complete", started, &completed, int64(10), []byte(`["s3://b/k"]`), (*string)(nil), (*string)(nil))
	mock.ExpectQuery(`SELECT id, feed, status`).WithArgs(5).WillReturnRows(rows)

	entries, err := l.List(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, StatusFailed, entries[0].Status)
	assert.Equal(t, "crawler stuck", entries[0].Error)
	assert.Equal(t, "permanent", entries[0].ErrorClass)
	assert.Equal(t, []string{"s3://b/k"}, entries[1].Artifacts)
	assert.Equal(t, int64(10), entries[1].Records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_List_CorruptArtifacts(t *testing.T) {
	l, mock := newMockPostgresLog(t)
	started := time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "feed", "status", "started_at", "completed_at", "records", "artifacts", "error", "error_class"}).
		AddRow("r1", "combined", "complete", started, &started, int64(10), []byte(`{"not":"a list"}`), (*string)(nil), (*string)(nil))
	mock.ExpectQuery(`SELECT id, feed, status`).WithArgs(5).WillReturnRows(rows)

	_, err := l.List(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode artifacts for run r1")
}
