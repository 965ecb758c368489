package schedule

import (
	"fmt"

	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// Summary describes the shape of a schedule.
type Summary struct {
	// CriticalPath is the longest chain of in-set dependencies, first task first.
	CriticalPath []models.TaskID
	// Potential is one of models.PotentialLow, PotentialMedium or PotentialHigh.
	Potential   string
	Explanation string
	// MaxWidth is the size of the largest batch.
	MaxWidth int
}

// Analyze computes the critical path of tasks and rates how much of the
// schedule can run in parallel. Edges that close a cycle are ignored when
// measuring chains. Ties go to the task that comes first in input order.
func Analyze(tasks []models.Task, s *models.Schedule) Summary {
	var sum Summary
	sum.CriticalPath = criticalPath(tasks)

	batches := s.Len()
	count := s.TaskCount()
	for i := 0; i < batches; i++ {
		if n := s.Batches[i].Len(); n > sum.MaxWidth {
			sum.MaxWidth = n
		}
	}

	if s == nil || batches == 0 {
		sum.Potential = models.PotentialLow
		sum.Explanation = "no tasks to schedule"
		return sum
	}

	ratio := float64(count) / float64(batches)
	switch {
	case sum.MaxWidth <= 1 || ratio < 1.5:
		sum.Potential = models.PotentialLow
	case ratio < 3:
		sum.Potential = models.PotentialMedium
	default:
		sum.Potential = models.PotentialHigh
	}

	sum.Explanation = fmt.Sprintf("%d task(s) in %d batch(es), %.1f per batch on average, widest batch runs %d in parallel; critical path has %d task(s)",
		count, batches, ratio, sum.MaxWidth, len(sum.CriticalPath))
	if s.Degraded {
		sum.Explanation += fmt.Sprintf("; %d task(s) could not be ordered", len(s.Unresolved))
	}
	return sum
}

func criticalPath(tasks []models.Task) []models.TaskID {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[models.TaskID]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	// 0=unvisited, 1=visiting, 2=visited
	state := make(map[models.TaskID]int, len(tasks))
	depth := make(map[models.TaskID]int, len(tasks))
	prev := make(map[models.TaskID]models.TaskID, len(tasks))

	var visit func(id models.TaskID)
	visit = func(id models.TaskID) {
		state[id] = 1
		best := 0
		for _, dep := range byID[id].DependsOn() {
			if _, ok := byID[dep]; !ok {
				continue
			}
			switch state[dep] {
			case 1:
				continue
			case 0:
				visit(dep)
			}
			if depth[dep] > best {
				best = depth[dep]
				prev[id] = dep
			}
		}
		depth[id] = best + 1
		state[id] = 2
	}

	var end models.TaskID
	longest := 0
	for _, t := range tasks {
		if state[t.ID] == 0 {
			visit(t.ID)
		}
		if depth[t.ID] > longest {
			longest = depth[t.ID]
			end = t.ID
		}
	}

	path := make([]models.TaskID, longest)
	cur := end
	for i := longest - 1; i >= 0; i-- {
		path[i] = cur
		cur = prev[cur]
	}
	return path
}
