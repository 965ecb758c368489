// Package schedule groups dependent tasks into ordered batches.
package schedule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/taskbatch/pkg/models"
)

var (
	// ErrMissingID indicates a task without an identifier.
	ErrMissingID = errors.New("task has no id")
	// ErrDuplicateID indicates two tasks share an identifier.
	ErrDuplicateID = errors.New("duplicate task id")
)

// Reporter receives scheduling diagnostics.
type Reporter interface {
	Warn(msg string, ids []models.TaskID)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(msg string, ids []models.TaskID)

// Warn calls f(msg, ids).
func (f ReporterFunc) Warn(msg string, ids []models.TaskID) {
	f(msg, ids)
}

type nopReporter struct{}

func (nopReporter) Warn(string, []models.TaskID) {}

// Option configures a scheduling call.
type Option func(*options)

type options struct {
	reporter Reporter
	debugLog func(format string, args ...interface{})
}

// WithReporter sets the sink for diagnostics such as the cycle fallback warning.
func WithReporter(r Reporter) Option {
	return func(o *options) {
		if r != nil {
			o.reporter = r
		}
	}
}

// WithDebugLog sets a trace logging function.
func WithDebugLog(fn func(format string, args ...interface{})) Option {
	return func(o *options) {
		if fn != nil {
			o.debugLog = fn
		}
	}
}

func buildOptions(opts []Option) *options {
	o := &options{
		reporter: nopReporter{},
		debugLog: func(format string, args ...interface{}) {},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// validate checks task identity and returns the set of known IDs.
func validate(tasks []models.Task) (map[models.TaskID]bool, error) {
	known := make(map[models.TaskID]bool, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("task at position %d: %w", i, ErrMissingID)
		}
		if known[t.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
		}
		known[t.ID] = true
	}
	return known, nil
}

// Build layers tasks into batches. A task joins batch i once every
// dependency it names is either unknown to the input or already placed in an
// earlier batch. Each batch takes every task that is ready at the start of
// its round, in input order.
//
// When tasks remain but none is ready, they are reported once through the
// configured Reporter and appended together as a final degraded batch.
// Self-references never become ready and therefore end up there too.
//
// Build only fails on a missing or duplicated task ID.
func Build(tasks []models.Task, opts ...Option) (*models.Schedule, error) {
	o := buildOptions(opts)

	known, err := validate(tasks)
	if err != nil {
		return nil, err
	}

	s := &models.Schedule{}
	if len(tasks) == 0 {
		return s, nil
	}

	o.debugLog("[schedule.Build] layering %d tasks", len(tasks))

	scheduled := make(map[models.TaskID]bool, len(tasks))
	remaining := tasks

	for len(remaining) > 0 {
		var ready, blocked []models.Task
		for _, t := range remaining {
			if isReady(t, known, scheduled) {
				ready = append(ready, t)
			} else {
				blocked = append(blocked, t)
			}
		}

		if len(ready) == 0 {
			ids := taskIDs(blocked)
			o.reporter.Warn(fmt.Sprintf("could not resolve dependencies for %d task(s), scheduling them in a final batch: %s",
				len(ids), joinIDs(ids)), ids)
			o.debugLog("[schedule.Build] fallback batch %d: %v", len(s.Batches), ids)
			s.Batches = append(s.Batches, models.Batch{
				Index:    len(s.Batches),
				Tasks:    blocked,
				Degraded: true,
			})
			s.Degraded = true
			s.Unresolved = ids
			break
		}

		// Mark after the scan so peers in one round never satisfy each other.
		for _, t := range ready {
			scheduled[t.ID] = true
		}
		o.debugLog("[schedule.Build] batch %d: %v", len(s.Batches), taskIDs(ready))
		s.Batches = append(s.Batches, models.Batch{Index: len(s.Batches), Tasks: ready})
		remaining = blocked
	}

	return s, nil
}

func isReady(t models.Task, known, scheduled map[models.TaskID]bool) bool {
	for _, dep := range t.Dependencies {
		if dep.TaskID == t.ID {
			return false
		}
		if !known[dep.TaskID] {
			continue
		}
		if !scheduled[dep.TaskID] {
			return false
		}
	}
	return true
}

// Chunk splits tasks into consecutive batches of at most size tasks,
// ignoring dependencies. A size of zero or less yields one batch.
func Chunk(tasks []models.Task, size int) (*models.Schedule, error) {
	if _, err := validate(tasks); err != nil {
		return nil, err
	}

	s := &models.Schedule{}
	if len(tasks) == 0 {
		return s, nil
	}
	if size <= 0 {
		size = len(tasks)
	}

	for start := 0; start < len(tasks); start += size {
		end := start + size
		if end > len(tasks) {
			end = len(tasks)
		}
		batch := make([]models.Task, end-start)
		copy(batch, tasks[start:end])
		s.Batches = append(s.Batches, models.Batch{Index: len(s.Batches), Tasks: batch})
	}
	return s, nil
}

func taskIDs(tasks []models.Task) []models.TaskID {
	ids := make([]models.TaskID, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func joinIDs(ids []models.TaskID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
