package schedule

import (
	"fmt"

	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// ViolationKind classifies a problem found in a proposed batch sequence.
type ViolationKind string

const (
	// ViolationUnknownTask means the plan names a task not in the task set.
	ViolationUnknownTask ViolationKind = "unknown_task"
	// ViolationDuplicate means the plan places a task more than once.
	ViolationDuplicate ViolationKind = "duplicate"
	// ViolationMissing means a task from the task set is absent from the plan.
	ViolationMissing ViolationKind = "missing"
	// ViolationOrder means a dependency is placed in the same or a later batch.
	ViolationOrder ViolationKind = "order"
)

// Violation describes one way a proposed plan breaks the dependency graph.
type Violation struct {
	Kind      ViolationKind
	TaskID    models.TaskID
	DependsOn models.TaskID
	// Batch is the zero-based batch index where the problem was seen, or -1.
	Batch   int
	Message string
}

func (v Violation) String() string {
	return v.Message
}

// Check validates a proposed batch sequence against tasks. Dependencies on
// tasks outside the set are ignored, matching Build. An empty result means
// the plan may be executed as given.
func Check(tasks []models.Task, batches [][]models.TaskID) []Violation {
	byID := make(map[models.TaskID]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var violations []Violation
	placed := make(map[models.TaskID]int, len(tasks))

	for i, batch := range batches {
		for _, id := range batch {
			if _, ok := byID[id]; !ok {
				violations = append(violations, Violation{
					Kind:    ViolationUnknownTask,
					TaskID:  id,
					Batch:   i,
					Message: fmt.Sprintf("batch %d: task %s is not in the task set", i+1, id),
				})
				continue
			}
			if prev, ok := placed[id]; ok {
				violations = append(violations, Violation{
					Kind:    ViolationDuplicate,
					TaskID:  id,
					Batch:   i,
					Message: fmt.Sprintf("batch %d: task %s already placed in batch %d", i+1, id, prev+1),
				})
				continue
			}
			placed[id] = i
		}
	}

	for _, t := range tasks {
		at, ok := placed[t.ID]
		if !ok {
			violations = append(violations, Violation{
				Kind:    ViolationMissing,
				TaskID:  t.ID,
				Batch:   -1,
				Message: fmt.Sprintf("task %s is not placed in any batch", t.ID),
			})
			continue
		}
		for _, dep := range t.DependsOn() {
			if _, known := byID[dep]; !known {
				continue
			}
			depAt, ok := placed[dep]
			if !ok {
				// Reported as missing above.
				continue
			}
			if depAt >= at {
				violations = append(violations, Violation{
					Kind:      ViolationOrder,
					TaskID:    t.ID,
					DependsOn: dep,
					Batch:     at,
					Message: fmt.Sprintf("batch %d: task %s depends on %s, which is placed in batch %d",
						at+1, t.ID, dep, depAt+1),
				})
			}
		}
	}

	return violations
}

// Reconcile accepts a proposed batch sequence when Check finds nothing wrong
// with it. Otherwise it builds a greedy schedule and returns it together
// with the violations that caused the fallback. Empty proposed batches are
// dropped.
func Reconcile(tasks []models.Task, proposed [][]models.TaskID, opts ...Option) (*models.Schedule, []Violation, error) {
	o := buildOptions(opts)

	if _, err := validate(tasks); err != nil {
		return nil, nil, err
	}

	violations := Check(tasks, proposed)
	if len(violations) > 0 {
		o.debugLog("[schedule.Reconcile] rejecting proposed plan: %d violation(s)", len(violations))
		o.reporter.Warn(fmt.Sprintf("proposed plan rejected (%d violation(s)), using greedy schedule: %s",
			len(violations), violations[0].Message), violatingIDs(violations))
		s, err := Build(tasks, opts...)
		return s, violations, err
	}

	byID := make(map[models.TaskID]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	s := &models.Schedule{}
	for _, ids := range proposed {
		if len(ids) == 0 {
			continue
		}
		batch := models.Batch{Index: len(s.Batches), Tasks: make([]models.Task, 0, len(ids))}
		for _, id := range ids {
			batch.Tasks = append(batch.Tasks, byID[id])
		}
		s.Batches = append(s.Batches, batch)
	}
	o.debugLog("[schedule.Reconcile] accepted proposed plan with %d batch(es)", len(s.Batches))
	return s, nil, nil
}

func violatingIDs(vs []Violation) []models.TaskID {
	seen := make(map[models.TaskID]bool)
	var ids []models.TaskID
	for _, v := range vs {
		if v.TaskID == "" || seen[v.TaskID] {
			continue
		}
		seen[v.TaskID] = true
		ids = append(ids, v.TaskID)
	}
	return ids
}
