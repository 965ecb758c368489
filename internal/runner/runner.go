// Package runner executes a schedule: the tasks of a batch run concurrently,
// and a batch starts only after every task of the previous batch finished.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/taskbatch/internal/logging"
	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// ErrTasksFailed indicates at least one task failed during a run.
var ErrTasksFailed = errors.New("one or more tasks failed")

// Recorder persists task results as they arrive.
type Recorder interface {
	RecordResult(ctx context.Context, runID string, result models.TaskResult) error
}

// Config contains configuration options for a Runner.
type Config struct {
	// RunID identifies the run. Empty generates a UUID.
	RunID string
	// MaxParallel bounds concurrent tasks within a batch. Zero means unbounded.
	MaxParallel int
	// TaskTimeout bounds each task. Zero means no timeout.
	TaskTimeout time.Duration
	// ContinueOnError runs later batches even after a failure.
	ContinueOnError bool
	// SerialDegraded runs a degraded fallback batch one task at a time, in
	// input order.
	SerialDegraded bool
	// OnEvent receives progress events.
	OnEvent EventHandler
	// Recorder stores each task result. Recording errors are logged, not fatal.
	Recorder Recorder
	// Logger traces runner decisions.
	Logger *logging.DebugLogger
}

// Runner executes schedules with an Executor.
type Runner struct {
	exec Executor
	cfg  Config

	// emitMu serializes event delivery.
	emitMu sync.Mutex
}

// New creates a Runner.
func New(exec Executor, cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	return &Runner{exec: exec, cfg: cfg}
}

// Report is the outcome of a run.
type Report struct {
	RunID      string
	Status     models.RunStatus
	Results    []models.TaskResult
	StartedAt  time.Time
	FinishedAt time.Time
	// StoppedAfter is the index of the batch after which the run stopped
	// because of failures, or -1.
	StoppedAfter int
}

// Counts returns how many tasks ended in each status.
func (r *Report) Counts() map[models.RunStatus]int {
	counts := make(map[models.RunStatus]int)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Failed returns the failed task results.
func (r *Report) Failed() []models.TaskResult {
	var out []models.TaskResult
	for _, res := range r.Results {
		if res.Status == models.RunStatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Run executes s. The returned report always covers every task of s; tasks
// that never started are marked canceled. The error is ErrTasksFailed when
// any task failed, or the context error when the run was interrupted.
func (r *Runner) Run(ctx context.Context, s *models.Schedule) (*Report, error) {
	if s == nil {
		s = &models.Schedule{}
	}
	runID := r.cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	rep := &Report{
		RunID:        runID,
		Status:       models.RunStatusRunning,
		StartedAt:    time.Now(),
		StoppedAfter: -1,
	}
	r.cfg.Logger.Log("run %s: %d batch(es), %d task(s), max_parallel=%d", runID, s.Len(), s.TaskCount(), r.cfg.MaxParallel)

	failedTotal := 0
	var runErr error

	for i, batch := range s.Batches {
		if err := ctx.Err(); err != nil {
			runErr = err
			r.skip(ctx, rep, s.Batches[i:], "run interrupted")
			break
		}

		r.emit(Event{Type: EventBatchStarted, RunID: runID, Batch: i,
			Message: fmt.Sprintf("batch %d/%d: %d task(s)", i+1, s.Len(), batch.Len())})

		results := r.runBatch(ctx, runID, i, batch)
		rep.Results = append(rep.Results, results...)

		failed := 0
		for _, res := range results {
			if res.Status == models.RunStatusFailed {
				failed++
			}
		}
		failedTotal += failed

		r.emit(Event{Type: EventBatchCompleted, RunID: runID, Batch: i,
			Message: fmt.Sprintf("batch %d/%d: %d of %d task(s) failed", i+1, s.Len(), failed, batch.Len())})

		if err := ctx.Err(); err != nil {
			runErr = err
			r.skip(ctx, rep, s.Batches[i+1:], "run interrupted")
			break
		}
		if failed > 0 && !r.cfg.ContinueOnError && i+1 < s.Len() {
			rep.StoppedAfter = i
			log.Printf("[runner] run %s: stopping after batch %d, %d task(s) failed", runID, i+1, failed)
			r.skip(ctx, rep, s.Batches[i+1:], fmt.Sprintf("batch %d failed", i+1))
			break
		}
	}

	rep.FinishedAt = time.Now()
	switch {
	case runErr != nil:
		rep.Status = models.RunStatusCanceled
	case failedTotal > 0:
		rep.Status = models.RunStatusFailed
		runErr = fmt.Errorf("%w: %d task(s)", ErrTasksFailed, failedTotal)
	default:
		rep.Status = models.RunStatusDone
	}

	r.emit(Event{Type: EventRunDone, RunID: runID, Message: string(rep.Status), Error: runErr,
		Duration: rep.FinishedAt.Sub(rep.StartedAt)})
	r.cfg.Logger.Log("run %s finished: %s", runID, rep.Status)
	return rep, runErr
}

// runBatch starts every task of batch and waits for all of them. Task
// failures never cancel siblings.
func (r *Runner) runBatch(ctx context.Context, runID string, index int, batch models.Batch) []models.TaskResult {
	results := make([]models.TaskResult, batch.Len())

	var g errgroup.Group
	switch {
	case batch.Degraded && r.cfg.SerialDegraded:
		g.SetLimit(1)
	case r.cfg.MaxParallel > 0:
		g.SetLimit(r.cfg.MaxParallel)
	}

	for j, task := range batch.Tasks {
		g.Go(func() error {
			results[j] = r.runTask(ctx, runID, index, task)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) runTask(ctx context.Context, runID string, batch int, task models.Task) models.TaskResult {
	res := models.TaskResult{TaskID: task.ID, Batch: batch, StartedAt: time.Now()}

	if err := ctx.Err(); err != nil {
		res.Status = models.RunStatusCanceled
		res.Error = err.Error()
		res.FinishedAt = res.StartedAt
		r.record(ctx, runID, res)
		r.emit(Event{Type: EventTaskSkipped, RunID: runID, Batch: batch, TaskID: task.ID, TaskName: task.Name, Message: "run interrupted"})
		return res
	}

	r.emit(Event{Type: EventTaskStarted, RunID: runID, Batch: batch, TaskID: task.ID, TaskName: task.Name, Timestamp: res.StartedAt})

	tctx := ctx
	if r.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, r.cfg.TaskTimeout)
		defer cancel()
	}

	out, err := r.exec.Execute(tctx, task)
	res.FinishedAt = time.Now()
	res.Output = out

	switch {
	case err == nil:
		res.Status = models.RunStatusDone
	case ctx.Err() != nil:
		res.Status = models.RunStatusCanceled
		res.Error = err.Error()
	case errors.Is(tctx.Err(), context.DeadlineExceeded):
		res.Status = models.RunStatusFailed
		res.Error = fmt.Sprintf("timed out after %s: %v", r.cfg.TaskTimeout, err)
	default:
		res.Status = models.RunStatusFailed
		res.Error = err.Error()
	}
	r.cfg.Logger.Log("task %s (batch %d): %s in %s", task.ID, batch+1, res.Status, res.Duration())

	r.record(ctx, runID, res)

	ev := Event{Type: EventTaskCompleted, RunID: runID, Batch: batch, TaskID: task.ID, TaskName: task.Name,
		Timestamp: res.FinishedAt, Duration: res.Duration()}
	if res.Status != models.RunStatusDone {
		ev.Type = EventTaskFailed
		ev.Error = err
		ev.Message = res.Error
	}
	r.emit(ev)
	return res
}

// skip marks every task of batches as canceled without running it.
func (r *Runner) skip(ctx context.Context, rep *Report, batches []models.Batch, reason string) {
	now := time.Now()
	for _, b := range batches {
		for _, task := range b.Tasks {
			res := models.TaskResult{
				TaskID:     task.ID,
				Batch:      b.Index,
				Status:     models.RunStatusCanceled,
				Error:      "skipped: " + reason,
				StartedAt:  now,
				FinishedAt: now,
			}
			rep.Results = append(rep.Results, res)
			r.record(ctx, rep.RunID, res)
			r.emit(Event{Type: EventTaskSkipped, RunID: rep.RunID, Batch: b.Index, TaskID: task.ID, TaskName: task.Name, Message: reason})
		}
	}
}

func (r *Runner) record(ctx context.Context, runID string, res models.TaskResult) {
	if r.cfg.Recorder == nil {
		return
	}
	// Results are still recorded after the run context is canceled.
	if err := r.cfg.Recorder.RecordResult(context.WithoutCancel(ctx), runID, res); err != nil {
		log.Printf("[runner] failed to record result for task %s: %v", res.TaskID, err)
	}
}

func (r *Runner) emit(ev Event) {
	if r.cfg.OnEvent == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	r.cfg.OnEvent(ev)
}
