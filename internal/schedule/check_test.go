package schedule

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ShayCichocki/taskbatch/pkg/models"
)

func diamond() []models.Task {
	return []models.Task{task("A"), task("B", "A"), task("C", "A"), task("D", "B", "C")}
}

func kinds(vs []Violation) []ViolationKind {
	out := make([]ViolationKind, len(vs))
	for i, v := range vs {
		out[i] = v.Kind
	}
	return out
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		batches [][]models.TaskID
		want    []ViolationKind
	}{
		{
			name:    "valid layered plan",
			batches: [][]models.TaskID{{"A"}, {"B", "C"}, {"D"}},
			want:    []ViolationKind{},
		},
		{
			name:    "valid but more serial than needed",
			batches: [][]models.TaskID{{"A"}, {"B"}, {"C"}, {"D"}},
			want:    []ViolationKind{},
		},
		{
			name:    "dependency in same batch",
			batches: [][]models.TaskID{{"A", "B"}, {"C"}, {"D"}},
			want:    []ViolationKind{ViolationOrder},
		},
		{
			name:    "dependency in later batch",
			batches: [][]models.TaskID{{"A"}, {"B", "C", "D"}},
			want:    []ViolationKind{ViolationOrder, ViolationOrder},
		},
		{
			name:    "unknown task",
			batches: [][]models.TaskID{{"A"}, {"B", "C", "X"}, {"D"}},
			want:    []ViolationKind{ViolationUnknownTask},
		},
		{
			name:    "duplicate placement",
			batches: [][]models.TaskID{{"A"}, {"B", "C"}, {"D", "A"}},
			want:    []ViolationKind{ViolationDuplicate},
		},
		{
			name:    "missing task",
			batches: [][]models.TaskID{{"A"}, {"B", "C"}},
			want:    []ViolationKind{ViolationMissing},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kinds(Check(diamond(), tt.batches))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Check() kinds = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheck_IgnoresDanglingDependencies(t *testing.T) {
	tasks := []models.Task{task("A"), task("B", "Z")}
	if vs := Check(tasks, [][]models.TaskID{{"A", "B"}}); len(vs) != 0 {
		t.Errorf("Check() = %v, want no violations", vs)
	}
}

func TestCheck_OrderViolationNamesBothTasks(t *testing.T) {
	vs := Check(diamond(), [][]models.TaskID{{"A", "B"}, {"C"}, {"D"}})
	if len(vs) != 1 {
		t.Fatalf("Check() = %v, want one violation", vs)
	}
	v := vs[0]
	if v.TaskID != "B" || v.DependsOn != "A" || v.Batch != 0 {
		t.Errorf("violation = %+v, want B depends on A in batch 0", v)
	}
	if v.String() == "" {
		t.Error("violation should carry a message")
	}
}

func TestReconcile_AcceptsValidPlan(t *testing.T) {
	rep := &recordingReporter{}
	proposed := [][]models.TaskID{{"A"}, {}, {"C"}, {"B"}, {"D"}}

	s, vs, err := Reconcile(diamond(), proposed, WithReporter(rep))
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(vs) != 0 {
		t.Errorf("violations = %v, want none", vs)
	}
	want := [][]models.TaskID{{"A"}, {"C"}, {"B"}, {"D"}}
	if got := s.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("schedule = %v, want %v", got, want)
	}
	for i, b := range s.Batches {
		if b.Index != i {
			t.Errorf("batch %d has Index %d", i, b.Index)
		}
	}
	if s.Batches[3].Tasks[0].Name != "Task D" {
		t.Errorf("accepted batches should carry full tasks, got %+v", s.Batches[3].Tasks[0])
	}
	if len(rep.calls) != 0 {
		t.Errorf("unexpected warnings: %v", rep.calls)
	}
}

func TestReconcile_FallsBackOnViolation(t *testing.T) {
	rep := &recordingReporter{}
	proposed := [][]models.TaskID{{"A", "B", "C", "D"}}

	s, vs, err := Reconcile(diamond(), proposed, WithReporter(rep))
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(vs) == 0 {
		t.Fatal("expected violations")
	}
	want := [][]string{{"A"}, {"B", "C"}, {"D"}}
	if got := sortedBatches(s); !reflect.DeepEqual(got, want) {
		t.Errorf("schedule = %v, want %v", got, want)
	}
	if len(rep.calls) != 1 {
		t.Errorf("warnings = %d, want 1", len(rep.calls))
	}
}

func TestReconcile_EmptyPlanFallsBack(t *testing.T) {
	s, vs, err := Reconcile(diamond(), nil)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(vs) != 4 {
		t.Errorf("violations = %d, want 4 missing", len(vs))
	}
	if s.Len() != 3 {
		t.Errorf("batches = %d, want 3", s.Len())
	}
}

func TestReconcile_InvalidTasks(t *testing.T) {
	_, _, err := Reconcile([]models.Task{task("A"), task("A")}, [][]models.TaskID{{"A"}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Reconcile() error = %v, want ErrDuplicateID", err)
	}
}
