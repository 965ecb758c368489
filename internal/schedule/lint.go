package schedule

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// Severity of a lint finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// FindingKind classifies a lint finding.
type FindingKind string

const (
	FindingSelfDependency FindingKind = "self_dependency"
	FindingDangling       FindingKind = "dangling_reference"
	FindingMissingName    FindingKind = "missing_name"
	FindingCycle          FindingKind = "cycle"
	FindingDuplicateID    FindingKind = "duplicate_id"
)

// Finding is an advisory problem in a task set. Build still produces a
// schedule for any task set that passes ID validation; findings explain
// where that schedule will be degraded or surprising.
type Finding struct {
	Severity Severity
	Kind     FindingKind
	TaskID   models.TaskID
	// Path holds the cycle for FindingCycle, closed with its first task.
	Path    []models.TaskID
	Message string
}

// Lint inspects tasks for repeated IDs, self-dependencies, references to
// unknown tasks, unnamed tasks and dependency cycles.
func Lint(tasks []models.Task) []Finding {
	var findings []Finding
	byID := make(map[models.TaskID]models.Task, len(tasks))
	for _, t := range tasks {
		if _, dup := byID[t.ID]; dup {
			findings = append(findings, Finding{
				Severity: SeverityError,
				Kind:     FindingDuplicateID,
				TaskID:   t.ID,
				Message:  fmt.Sprintf("task id %s is used more than once", t.ID),
			})
			continue
		}
		byID[t.ID] = t
	}

	for _, t := range tasks {
		if strings.TrimSpace(t.Name) == "" {
			findings = append(findings, Finding{
				Severity: SeverityWarning,
				Kind:     FindingMissingName,
				TaskID:   t.ID,
				Message:  fmt.Sprintf("task %s has no name", t.ID),
			})
		}
		for _, dep := range t.DependsOn() {
			switch {
			case dep == t.ID:
				findings = append(findings, Finding{
					Severity: SeverityError,
					Kind:     FindingSelfDependency,
					TaskID:   t.ID,
					Message:  fmt.Sprintf("task %s depends on itself", t.ID),
				})
			case !hasTask(byID, dep):
				findings = append(findings, Finding{
					Severity: SeverityWarning,
					Kind:     FindingDangling,
					TaskID:   t.ID,
					Message:  fmt.Sprintf("task %s depends on unknown task %s (treated as satisfied)", t.ID, dep),
				})
			}
		}
	}

	for _, cycle := range findCycles(tasks, byID) {
		findings = append(findings, Finding{
			Severity: SeverityError,
			Kind:     FindingCycle,
			TaskID:   cycle[0],
			Path:     cycle,
			Message:  fmt.Sprintf("circular dependency detected: %s", joinPath(cycle)),
		})
	}

	return findings
}

// HasErrors reports whether any finding is an error.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

func hasTask(byID map[models.TaskID]models.Task, id models.TaskID) bool {
	_, ok := byID[id]
	return ok
}

// findCycles returns one path per back edge found by a depth-first walk in
// input order. Self-edges are left to the self-dependency check.
func findCycles(tasks []models.Task, byID map[models.TaskID]models.Task) [][]models.TaskID {
	state := make(map[models.TaskID]int, len(tasks)) // 0=unvisited, 1=visiting, 2=visited
	var cycles [][]models.TaskID

	var visit func(id models.TaskID, path []models.TaskID)
	visit = func(id models.TaskID, path []models.TaskID) {
		state[id] = 1
		path = append(path, id)
		for _, dep := range byID[id].DependsOn() {
			if dep == id || !hasTask(byID, dep) {
				continue
			}
			switch state[dep] {
			case 1:
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle := make([]models.TaskID, 0, len(path)-start+1)
				cycle = append(cycle, path[start:]...)
				cycle = append(cycle, dep)
				cycles = append(cycles, cycle)
			case 0:
				visit(dep, path)
			}
		}
		state[id] = 2
	}

	for _, t := range tasks {
		if state[t.ID] == 0 {
			visit(t.ID, nil)
		}
	}
	return cycles
}

func joinPath(ids []models.TaskID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}
