package models

// Strategy names how a schedule was produced.
type Strategy string

const (
	// StrategyGreedy layers tasks by dependency depth.
	StrategyGreedy Strategy = "greedy"
	// StrategySimple chunks tasks into fixed-size batches, ignoring dependencies.
	StrategySimple Strategy = "simple"
	// StrategyAI asks a model for a plan and validates it against the graph.
	StrategyAI Strategy = "ai"
)

// Valid returns true if the strategy is a known value.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyGreedy, StrategySimple, StrategyAI:
		return true
	default:
		return false
	}
}

// Parallelization potential levels used in plan summaries.
const (
	PotentialLow    = "low"
	PotentialMedium = "medium"
	PotentialHigh   = "high"
)

// ExecutionPlan is the document form of a schedule.
type ExecutionPlan struct {
	TotalTasks          int                 `json:"total_tasks" yaml:"total_tasks" toml:"total_tasks"`
	TotalBatches        int                 `json:"total_batches" yaml:"total_batches" toml:"total_batches"`
	Batches             []PlanBatch         `json:"batches" yaml:"batches" toml:"batches"`
	DependenciesSummary DependenciesSummary `json:"dependencies_summary" yaml:"dependencies_summary" toml:"dependencies_summary"`
}

// PlanBatch is one batch of an execution plan document.
type PlanBatch struct {
	BatchID                  int         `json:"batch_id" yaml:"batch_id" toml:"batch_id"`
	Description              string      `json:"description" yaml:"description" toml:"description"`
	Strategy                 string      `json:"strategy" yaml:"strategy" toml:"strategy"`
	Tasks                    []BatchTask `json:"tasks" yaml:"tasks" toml:"tasks"`
	ParallelizationRationale string      `json:"parallelization_rationale" yaml:"parallelization_rationale" toml:"parallelization_rationale"`
}

// BatchTask references a task from a plan batch.
type BatchTask struct {
	TaskID   TaskID `json:"task_id" yaml:"task_id" toml:"task_id"`
	TaskName string `json:"task_name" yaml:"task_name" toml:"task_name"`
	Reason   string `json:"reason" yaml:"reason" toml:"reason"`
}

// DependenciesSummary describes the shape of the dependency graph.
type DependenciesSummary struct {
	// CriticalPath is the longest dependency chain, first task first.
	CriticalPath               []TaskID `json:"critical_path" yaml:"critical_path" toml:"critical_path"`
	ParallelizationPotential   string   `json:"parallelization_potential" yaml:"parallelization_potential" toml:"parallelization_potential"`
	ParallelizationExplanation string   `json:"parallelization_explanation" yaml:"parallelization_explanation" toml:"parallelization_explanation"`
}
