package loadlog

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLog(t *testing.T) (*LoadLog, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func TestStart(t *testing.T) {
	l, mock := newMockLog(t)

	mock.ExpectQuery("INSERT INTO etl.load_log").
		WithArgs("run-1", "dim_productos").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	id, err := l.Start(context.Background(), "run-1", "dim_productos")
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete(t *testing.T) {
	l, mock := newMockLog(t)

	mock.ExpectExec("UPDATE etl.load_log").
		WithArgs(100, 3, int64(11)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, l.Complete(context.Background(), 11, 100, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFail(t *testing.T) {
	l, mock := newMockLog(t)

	mock.ExpectExec("UPDATE etl.load_log").
		WithArgs("copy failed", int64(11)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, l.Fail(context.Background(), 11, "copy failed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStart_Error(t *testing.T) {
	l, mock := newMockLog(t)

	mock.ExpectQuery("INSERT INTO etl.load_log").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(eris.New("relation does not exist"))

	_, err := l.Start(context.Background(), "run-1", "dim_productos")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent(t *testing.T) {
	l, mock := newMockLog(t)

	started := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(2 * time.Minute)
	errMsg := "timeout"

	mock.ExpectQuery("SELECT id, run_id, phase, status").
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "run_id", "phase", "status", "loaded", "skipped", "error", "started_at", "finished_at",
		}).
			AddRow(int64(2), "run-2", "fact_surveys", "failed", 0, 0, &errMsg, started, (*time.Time)(nil)).
			AddRow(int64(1), "run-1", "dim_time", "complete", 396, 0, (*string)(nil), started, &finished))

	entries, err := l.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "fact_surveys", entries[0].Phase)
	assert.Equal(t, "timeout", entries[0].Error)
	assert.Nil(t, entries[0].FinishedAt)

	assert.Equal(t, 396, entries[1].Loaded)
	require.NotNil(t, entries[1].FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent_IterationError(t *testing.T) {
	l, mock := newMockLog(t)

	started := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, run_id, phase, status").
		WithArgs(1).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "run_id", "phase", "status", "loaded", "skipped", "error", "started_at", "finished_at",
		}).
			AddRow(int64(1), "run-1", "dim_time", "complete", 396, 0, (*string)(nil), started, (*time.Time)(nil)).
			CloseError(eris.New("connection reset")))

	_, err := l.Recent(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loadlog: recent iterate")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecent_DefaultLimit(t *testing.T) {
	l, mock := newMockLog(t)

	mock.ExpectQuery("SELECT id, run_id, phase, status").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "run_id", "phase", "status", "loaded", "skipped", "error", "started_at", "finished_at",
		}))

	entries, err := l.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}
