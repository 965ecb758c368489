package models

// TaskID identifies a task within a plan. Numeric identifiers from input
// documents are carried in their decimal string form.
type TaskID string

// String returns the identifier as a plain string.
func (id TaskID) String() string {
	return string(id)
}

// Dependency is a reference to a task that must finish first.
type Dependency struct {
	// TaskID is the ID of the required task.
	TaskID TaskID `json:"task_id" yaml:"task_id"`
	// Reason explains why the dependency exists.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Task is a unit of planned work.
type Task struct {
	// ID is the unique identifier for this task.
	ID TaskID `json:"id" yaml:"id"`
	// Name is the short display name.
	Name string `json:"name" yaml:"name"`
	// Context describes the task in more detail.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
	// Dependencies lists tasks that must complete before this one.
	Dependencies []Dependency `json:"requires_completion_of,omitempty" yaml:"requires_completion_of,omitempty"`
}

// DependsOn returns the IDs of the tasks this task waits for, in declaration order.
func (t Task) DependsOn() []TaskID {
	if len(t.Dependencies) == 0 {
		return nil
	}
	ids := make([]TaskID, len(t.Dependencies))
	for i, dep := range t.Dependencies {
		ids[i] = dep.TaskID
	}
	return ids
}

// HasDependencies reports whether the task declares any dependency.
func (t Task) HasDependencies() bool {
	return len(t.Dependencies) > 0
}

// NewTask builds a task whose dependency reasons are left empty.
// It is mostly useful in tests and when converting flat ID lists.
func NewTask(id TaskID, name string, deps ...TaskID) Task {
	t := Task{ID: id, Name: name}
	for _, d := range deps {
		t.Dependencies = append(t.Dependencies, Dependency{TaskID: d})
	}
	return t
}
