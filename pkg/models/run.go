package models

import "time"

// RunStatus represents the state of a run or of one task within it.
type RunStatus string

const (
	// RunStatusPending indicates work has not started.
	RunStatusPending RunStatus = "pending"
	// RunStatusRunning indicates work is in progress.
	RunStatusRunning RunStatus = "running"
	// RunStatusDone indicates work completed successfully.
	RunStatusDone RunStatus = "done"
	// RunStatusFailed indicates work failed.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCanceled indicates work was skipped or interrupted.
	RunStatusCanceled RunStatus = "canceled"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusDone, RunStatusFailed, RunStatusCanceled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunStatusDone || s == RunStatusFailed || s == RunStatusCanceled
}

// TaskResult records the outcome of executing one task.
type TaskResult struct {
	TaskID     TaskID    `json:"task_id"`
	Batch      int       `json:"batch"`
	Status     RunStatus `json:"status"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns how long the task ran.
func (r TaskResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
