package schedule

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/ShayCichocki/taskbatch/pkg/models"
)

func task(id string, deps ...string) models.Task {
	ids := make([]models.TaskID, len(deps))
	for i, d := range deps {
		ids[i] = models.TaskID(d)
	}
	return models.NewTask(models.TaskID(id), "Task "+id, ids...)
}

// sortedBatches returns batch membership with each batch sorted, so
// comparisons do not depend on intra-batch order.
func sortedBatches(s *models.Schedule) [][]string {
	out := make([][]string, 0, s.Len())
	for _, b := range s.Batches {
		ids := make([]string, 0, b.Len())
		for _, t := range b.Tasks {
			ids = append(ids, string(t.ID))
		}
		sort.Strings(ids)
		out = append(out, ids)
	}
	return out
}

type recordingReporter struct {
	mu    sync.Mutex
	calls []string
	ids   [][]models.TaskID
}

func (r *recordingReporter) Warn(msg string, ids []models.TaskID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, msg)
	r.ids = append(r.ids, ids)
}

func TestBuild_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		tasks    []models.Task
		want     [][]string
		warnings int
		degraded bool
	}{
		{
			name:  "diamond",
			tasks: []models.Task{task("A"), task("B", "A"), task("C", "A"), task("D", "B", "C")},
			want:  [][]string{{"A"}, {"B", "C"}, {"D"}},
		},
		{
			name:     "two task cycle",
			tasks:    []models.Task{task("A", "B"), task("B", "A")},
			want:     [][]string{{"A", "B"}},
			warnings: 1,
			degraded: true,
		},
		{
			name:  "dangling reference is ignored",
			tasks: []models.Task{task("A"), task("B", "Z")},
			want:  [][]string{{"A", "B"}},
		},
		{
			name:  "single task",
			tasks: []models.Task{task("A")},
			want:  [][]string{{"A"}},
		},
		{
			name:  "empty input",
			tasks: nil,
			want:  [][]string{},
		},
		{
			name:  "chain",
			tasks: []models.Task{task("C", "B"), task("B", "A"), task("A")},
			want:  [][]string{{"A"}, {"B"}, {"C"}},
		},
		{
			name:     "self reference falls back",
			tasks:    []models.Task{task("A"), task("B", "B")},
			want:     [][]string{{"A"}, {"B"}},
			warnings: 1,
			degraded: true,
		},
		{
			name:     "cycle after clean prefix carries its dependents",
			tasks:    []models.Task{task("A"), task("B", "A", "C"), task("C", "B"), task("D", "C"), task("E", "A")},
			want:     [][]string{{"A"}, {"E"}, {"B", "C", "D"}},
			warnings: 1,
			degraded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &recordingReporter{}
			s, err := Build(tt.tasks, WithReporter(rep))
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if got := sortedBatches(s); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("batches = %v, want %v", got, tt.want)
			}
			if len(rep.calls) != tt.warnings {
				t.Errorf("warnings = %d, want %d (%v)", len(rep.calls), tt.warnings, rep.calls)
			}
			if s.Degraded != tt.degraded {
				t.Errorf("Degraded = %v, want %v", s.Degraded, tt.degraded)
			}
			if tt.degraded && !s.Batches[s.Len()-1].Degraded {
				t.Error("last batch should be marked degraded")
			}
		})
	}
}

func TestBuild_FallbackNamesUnresolvedTasks(t *testing.T) {
	rep := &recordingReporter{}
	s, err := Build([]models.Task{task("1"), task("2", "3"), task("3", "2")}, WithReporter(rep))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := []models.TaskID{"2", "3"}
	if !reflect.DeepEqual(s.Unresolved, want) {
		t.Errorf("Unresolved = %v, want %v", s.Unresolved, want)
	}
	if len(rep.ids) != 1 || !reflect.DeepEqual(rep.ids[0], want) {
		t.Errorf("reported ids = %v, want [%v]", rep.ids, want)
	}
}

func TestBuild_IntraBatchOrderIsInputOrder(t *testing.T) {
	s, err := Build([]models.Task{task("z"), task("m"), task("a"), task("b", "z")})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	got := s.Batches[0].IDs()
	want := []models.TaskID{"z", "m", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("first batch = %v, want %v", got, want)
	}
}

// Peers scanned earlier in the same round must not satisfy later peers.
func TestBuild_PeersDoNotSatisfyEachOther(t *testing.T) {
	s, err := Build([]models.Task{task("A"), task("B", "A")})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("batches = %v, want [[A] [B]]", s.IDs())
	}
	if s.BatchOf("B") != 1 {
		t.Errorf("BatchOf(B) = %d, want 1", s.BatchOf("B"))
	}
}

func TestBuild_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		tasks []models.Task
		want  error
	}{
		{"missing id", []models.Task{task("A"), {Name: "nameless"}}, ErrMissingID},
		{"duplicate id", []models.Task{task("A"), task("A")}, ErrDuplicateID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.tasks)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuild_DefaultReporterIsSilent(t *testing.T) {
	s, err := Build([]models.Task{task("A", "B"), task("B", "A")})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !s.Degraded {
		t.Error("expected degraded schedule")
	}
}

func TestBuild_DebugLog(t *testing.T) {
	var lines []string
	_, err := Build([]models.Task{task("A")}, WithDebugLog(func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(lines) == 0 {
		t.Error("expected debug log output")
	}
}

// generated builds a layered graph with some cross edges, dangling
// references and an optional cycle, for property checks.
func generated(n int, withCycle bool) []models.Task {
	tasks := make([]models.Task, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("t%d", i)
		var deps []string
		if i > 0 && i%2 == 0 {
			deps = append(deps, fmt.Sprintf("t%d", i-1))
		}
		if i > 2 && i%3 == 0 {
			deps = append(deps, fmt.Sprintf("t%d", i-3))
		}
		if i%5 == 0 {
			deps = append(deps, fmt.Sprintf("external-%d", i))
		}
		tasks = append(tasks, task(id, deps...))
	}
	if withCycle {
		tasks = append(tasks, task("c1", "c2"), task("c2", "c1", "t0"))
		tasks[n-1].Dependencies = append(tasks[n-1].Dependencies, models.Dependency{TaskID: "c1"})
	}
	return tasks
}

func TestBuild_Properties(t *testing.T) {
	for _, n := range []int{1, 7, 25, 60} {
		for _, withCycle := range []bool{false, true} {
			t.Run(fmt.Sprintf("n=%d cycle=%v", n, withCycle), func(t *testing.T) {
				tasks := generated(n, withCycle)
				s, err := Build(tasks)
				if err != nil {
					t.Fatalf("Build() error = %v", err)
				}

				// Completeness.
				seen := make(map[models.TaskID]int)
				for _, b := range s.Batches {
					for _, tk := range b.Tasks {
						seen[tk.ID]++
					}
				}
				if withCycle && !s.Degraded {
					t.Error("expected degraded schedule")
				}
				if len(seen) != len(tasks) {
					t.Fatalf("scheduled %d distinct tasks, want %d", len(seen), len(tasks))
				}
				for id, c := range seen {
					if c != 1 {
						t.Errorf("task %s scheduled %d times", id, c)
					}
				}

				known := make(map[models.TaskID]bool)
				for _, tk := range tasks {
					known[tk.ID] = true
				}

				// Dependency ordering, outside the fallback batch.
				for i, b := range s.Batches {
					if b.Degraded {
						continue
					}
					for _, tk := range b.Tasks {
						for _, dep := range tk.DependsOn() {
							if !known[dep] {
								continue
							}
							if j := s.BatchOf(dep); j >= i {
								t.Errorf("task %s in batch %d depends on %s in batch %d", tk.ID, i, dep, j)
							}
						}
					}
				}

				// Maximality: every task outside batch 0 has a known
				// dependency in the immediately preceding batch.
				for i, b := range s.Batches {
					if i == 0 || b.Degraded {
						continue
					}
					for _, tk := range b.Tasks {
						latest := -1
						for _, dep := range tk.DependsOn() {
							if known[dep] && s.BatchOf(dep) > latest {
								latest = s.BatchOf(dep)
							}
						}
						if latest != i-1 {
							t.Errorf("task %s in batch %d could have run in batch %d", tk.ID, i, latest+1)
						}
					}
				}

				// Determinism.
				again, err := Build(tasks)
				if err != nil {
					t.Fatalf("second Build() error = %v", err)
				}
				if !reflect.DeepEqual(s.IDs(), again.IDs()) {
					t.Error("two runs produced different partitions")
				}
			})
		}
	}
}

func TestBuild_ConcurrentCalls(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tasks := generated(10+n, n%2 == 0)
			if _, err := Build(tasks); err != nil {
				t.Errorf("Build() error = %v", err)
			}
		}(i)
	}
	wg.Wait()
}

func TestChunk(t *testing.T) {
	tasks := []models.Task{task("1"), task("2", "1"), task("3"), task("4"), task("5")}

	tests := []struct {
		name string
		size int
		want [][]models.TaskID
	}{
		{"size 2", 2, [][]models.TaskID{{"1", "2"}, {"3", "4"}, {"5"}}},
		{"size larger than input", 10, [][]models.TaskID{{"1", "2", "3", "4", "5"}}},
		{"zero size means one batch", 0, [][]models.TaskID{{"1", "2", "3", "4", "5"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Chunk(tasks, tt.size)
			if err != nil {
				t.Fatalf("Chunk() error = %v", err)
			}
			if got := s.IDs(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Chunk() = %v, want %v", got, tt.want)
			}
		})
	}

	s, err := Chunk(nil, 3)
	if err != nil || s.Len() != 0 {
		t.Errorf("Chunk(nil) = %v, %v; want empty schedule", s, err)
	}
	if _, err := Chunk([]models.Task{task("1"), task("1")}, 1); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Chunk() with duplicates error = %v, want ErrDuplicateID", err)
	}
}
