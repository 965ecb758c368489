package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// ErrNotFound indicates the requested run does not exist.
var ErrNotFound = errors.New("run not found")

// Run is one recorded execution of a schedule.
type Run struct {
	ID         string           `db:"id"`
	Source     string           `db:"source"`
	Strategy   models.Strategy  `db:"strategy"`
	Status     models.RunStatus `db:"status"`
	Degraded   bool             `db:"degraded"`
	BatchCount int              `db:"batch_count"`
	TaskCount  int              `db:"task_count"`
	StartedAt  time.Time        `db:"started_at"`
	FinishedAt sql.NullTime     `db:"finished_at"`
}

// Duration returns the run's wall time, or zero while it is unfinished.
func (r Run) Duration() time.Duration {
	if !r.FinishedAt.Valid {
		return 0
	}
	return r.FinishedAt.Time.Sub(r.StartedAt)
}

type resultRow struct {
	RunID      string           `db:"run_id"`
	TaskID     models.TaskID    `db:"task_id"`
	Batch      int              `db:"batch"`
	Status     models.RunStatus `db:"status"`
	Output     string           `db:"output"`
	Error      string           `db:"error"`
	StartedAt  time.Time        `db:"started_at"`
	FinishedAt time.Time        `db:"finished_at"`
}

// CreateRun inserts a run. An empty ID is replaced by a new UUID, and a
// zero StartedAt by the current time.
func (db *DB) CreateRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = models.RunStatusRunning
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.NamedExecContext(ctx, `
		INSERT INTO runs (id, source, strategy, status, degraded, batch_count, task_count, started_at, finished_at)
		VALUES (:id, :source, :strategy, :status, :degraded, :batch_count, :task_count, :started_at, :finished_at)
	`, r)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun sets the final status and finish time of a run.
func (db *DB) FinishRun(ctx context.Context, id string, status models.RunStatus, finishedAt time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("run status %q is not final", status)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx, `UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, finishedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// RecordResult stores the outcome of one task, replacing an earlier result
// for the same task in the same run.
func (db *DB) RecordResult(ctx context.Context, runID string, result models.TaskResult) error {
	row := resultRow{
		RunID:      runID,
		TaskID:     result.TaskID,
		Batch:      result.Batch,
		Status:     result.Status,
		Output:     result.Output,
		Error:      result.Error,
		StartedAt:  result.StartedAt.UTC(),
		FinishedAt: result.FinishedAt.UTC(),
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.NamedExecContext(ctx, `
		INSERT INTO task_results (run_id, task_id, batch, status, output, error, started_at, finished_at)
		VALUES (:run_id, :task_id, :batch, :status, :output, :error, :started_at, :finished_at)
		ON CONFLICT (run_id, task_id) DO UPDATE SET
			batch = excluded.batch,
			status = excluded.status,
			output = excluded.output,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`, row)
	if err != nil {
		return fmt.Errorf("record result for task %s: %w", result.TaskID, err)
	}
	return nil
}

// GetRun returns the run with the given ID.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	err := db.conn.GetContext(ctx, &r, `SELECT * FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	var runs []Run
	if err := db.conn.SelectContext(ctx, &runs, `SELECT * FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ListResults returns the task results of a run ordered by batch.
func (db *DB) ListResults(ctx context.Context, runID string) ([]models.TaskResult, error) {
	var rows []resultRow
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT * FROM task_results WHERE run_id = ? ORDER BY batch, started_at, rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	results := make([]models.TaskResult, len(rows))
	for i, r := range rows {
		results[i] = models.TaskResult{
			TaskID:     r.TaskID,
			Batch:      r.Batch,
			Status:     r.Status,
			Output:     r.Output,
			Error:      r.Error,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
		}
	}
	return results, nil
}

// DeleteRun removes a run and its results.
func (db *DB) DeleteRun(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
