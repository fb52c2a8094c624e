// Package loadlog provides read/write access to the etl.load_log
// table, the per-phase audit trail of warehouse load runs.
package loadlog

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sur-analytics/opiniones-etl/internal/db"
)

// Entry represents a row in etl.load_log.
type Entry struct {
	ID         int64      `json:"id"`
	RunID      string     `json:"run_id"`
	Phase      string     `json:"phase"`
	Status     string     `json:"status"`
	Loaded     int        `json:"loaded"`
	Skipped    int        `json:"skipped"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// LoadLog records phase outcomes into etl.load_log.
type LoadLog struct {
	pool db.Pool
}

// New creates a LoadLog backed by the given connection pool.
func New(pool db.Pool) *LoadLog {
	return &LoadLog{pool: pool}
}

// Start records the beginning of a phase and returns its log ID.
func (l *LoadLog) Start(ctx context.Context, runID, phase string) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO etl.load_log (run_id, phase, status, started_at)
		 VALUES ($1, $2, 'running', now()) RETURNING id`,
		runID, phase,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "loadlog: start phase %s", phase)
	}
	return id, nil
}

// Complete marks a phase as successfully finished with its counts.
func (l *LoadLog) Complete(ctx context.Context, id int64, loaded, skipped int) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE etl.load_log
		 SET status = 'complete', finished_at = now(), loaded = $1, skipped = $2
		 WHERE id = $3`,
		loaded, skipped, id,
	)
	if err != nil {
		return eris.Wrapf(err, "loadlog: complete phase %d", id)
	}
	return nil
}

// Fail marks a phase as failed with an error message.
func (l *LoadLog) Fail(ctx context.Context, id int64, cause string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE etl.load_log
		 SET status = 'failed', finished_at = now(), error = $1
		 WHERE id = $2`,
		cause, id,
	)
	if err != nil {
		return eris.Wrapf(err, "loadlog: fail phase %d", id)
	}
	return nil
}

// Recent returns the latest entries ordered by most recent first.
func (l *LoadLog) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, run_id, phase, status, loaded, skipped, error, started_at, finished_at
		 FROM etl.load_log ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "loadlog: recent")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errStr *string
		var finishedAt *time.Time
		if err := rows.Scan(&e.ID, &e.RunID, &e.Phase, &e.Status, &e.Loaded, &e.Skipped, &errStr, &e.StartedAt, &finishedAt); err != nil {
			return nil, eris.Wrap(err, "loadlog: scan entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		e.FinishedAt = finishedAt
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "loadlog: recent iterate")
}
