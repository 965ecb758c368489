package runner

import (
	"time"

	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// EventType represents the type of runner event.
type EventType string

const (
	// EventBatchStarted indicates a batch has started.
	EventBatchStarted EventType = "batch_started"
	// EventBatchCompleted indicates every task of a batch has finished.
	EventBatchCompleted EventType = "batch_completed"
	// EventTaskStarted indicates a task has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed or timed out.
	EventTaskFailed EventType = "task_failed"
	// EventTaskSkipped indicates a task was not started because the run stopped.
	EventTaskSkipped EventType = "task_skipped"
	// EventRunDone indicates the run has finished.
	EventRunDone EventType = "run_done"
)

// Event represents something that happened during a run.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the run.
	RunID string
	// Batch is the zero-based batch index, if applicable.
	Batch int
	// TaskID is the related task, if applicable.
	TaskID models.TaskID
	// TaskName is the display name of the related task.
	TaskName string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the elapsed time for completion events.
	Duration time.Duration
}

// EventHandler receives run events. Calls are serialized by the runner.
type EventHandler func(Event)
