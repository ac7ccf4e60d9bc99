package scheduler

import (
	"database/sql"
	"fmt"
	"time"
)

// JobRun is one recorded execution of a scheduled job.
type JobRun struct {
	ID        string
	Job       string
	StartedAt time.Time
	Duration  time.Duration
	Status    string
	Error     string
}

// History persists job runs into the job_history table in cache.db.
type History struct {
	db *sql.DB
}

// NewHistory creates a job run history over cache.db.
func NewHistory(db *sql.DB) *History {
	return &History{db: db}
}

// Record inserts a completed job run.
func (h *History) Record(run JobRun) error {
	_, err := h.db.Exec(`
		INSERT INTO job_history (id, job_name, status, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Job,
		run.Status,
		run.Error,
		run.StartedAt.Unix(),
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record job run: %w", err)
	}

	return nil
}

// Recent returns the most recent job runs, newest first.
func (h *History) Recent(limit int) ([]JobRun, error) {
	rows, err := h.db.Query(`
		SELECT id, job_name, status, COALESCE(error, ''), started_at, duration_ms
		FROM job_history
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query job history: %w", err)
	}
	defer rows.Close()

	var runs []JobRun
	for rows.Next() {
		var run JobRun
		var startedAt int64
		var durationMs int64
		if err := rows.Scan(&run.ID, &run.Job, &run.Status, &run.Error, &startedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan job run: %w", err)
		}
		run.StartedAt = time.Unix(startedAt, 0)
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Prune deletes runs older than the retention window.
// Returns the number of rows deleted.
func (h *History) Prune(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()

	result, err := h.db.Exec(`DELETE FROM job_history WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune job history: %w", err)
	}

	return result.RowsAffected()
}
