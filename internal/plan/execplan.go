package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/taskbatch/internal/schedule"
	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// ErrEmptyPlan indicates an execution plan without any task placements.
var ErrEmptyPlan = errors.New("execution plan has no batches")

type planDoc struct {
	TotalTasks   int            `yaml:"total_tasks"`
	TotalBatches int            `yaml:"total_batches"`
	Batches      []planBatchDoc `yaml:"batches"`
	Summary      summaryDoc     `yaml:"dependencies_summary"`
}

type planBatchDoc struct {
	BatchID                  int            `yaml:"batch_id"`
	Description              string         `yaml:"description"`
	Strategy                 string         `yaml:"strategy"`
	Tasks                    []batchTaskDoc `yaml:"tasks"`
	ParallelizationRationale string         `yaml:"parallelization_rationale"`
}

type batchTaskDoc struct {
	TaskID   flexID `yaml:"task_id"`
	TaskName string `yaml:"task_name"`
	Reason   string `yaml:"reason"`
}

type summaryDoc struct {
	CriticalPath               []pathEntry `yaml:"critical_path"`
	ParallelizationPotential   string      `yaml:"parallelization_potential"`
	ParallelizationExplanation string      `yaml:"parallelization_explanation"`
}

// pathEntry is a critical path element, written either as a bare ID or as
// a {task_id: ...} mapping.
type pathEntry struct {
	ID flexID
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *pathEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return p.ID.UnmarshalYAML(value)
	}
	var m struct {
		TaskID flexID `yaml:"task_id"`
	}
	if err := value.Decode(&m); err != nil {
		return err
	}
	p.ID = m.TaskID
	return nil
}

// ParseExecutionPlan decodes an execution plan document, with or without
// the execution_plan wrapper key. Because YAML is a superset of JSON, JSON
// plans are accepted too. Task IDs are returned as placed, including IDs
// that may not exist in the task set, so schedule.Check can report them.
func ParseExecutionPlan(data []byte) (*models.ExecutionPlan, [][]models.TaskID, error) {
	text := string(data)
	if strings.Contains(text, "```") {
		text = ExtractYAML(text)
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, nil, fmt.Errorf("decode execution plan: %w", err)
	}
	node := &root
	if node.Kind == 0 {
		return nil, nil, ErrEmptyPlan
	}
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil, ErrEmptyPlan
		}
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("decode execution plan: expected a mapping")
	}
	if inner := valueOf(node, "execution_plan"); inner != nil {
		node = inner
	}

	var doc planDoc
	if err := node.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decode execution plan: %w", err)
	}

	p := &models.ExecutionPlan{
		TotalTasks:   doc.TotalTasks,
		TotalBatches: doc.TotalBatches,
		DependenciesSummary: models.DependenciesSummary{
			ParallelizationPotential:   strings.TrimSpace(doc.Summary.ParallelizationPotential),
			ParallelizationExplanation: strings.TrimSpace(doc.Summary.ParallelizationExplanation),
		},
	}
	for _, e := range doc.Summary.CriticalPath {
		if id := e.ID.taskID(); id != "" {
			p.DependenciesSummary.CriticalPath = append(p.DependenciesSummary.CriticalPath, id)
		}
	}

	var batches [][]models.TaskID
	for _, b := range doc.Batches {
		pb := models.PlanBatch{
			BatchID:                  b.BatchID,
			Description:              strings.TrimSpace(b.Description),
			Strategy:                 b.Strategy,
			ParallelizationRationale: strings.TrimSpace(b.ParallelizationRationale),
		}
		var ids []models.TaskID
		for _, t := range b.Tasks {
			id := t.TaskID.taskID()
			if id == "" {
				continue
			}
			pb.Tasks = append(pb.Tasks, models.BatchTask{TaskID: id, TaskName: t.TaskName, Reason: t.Reason})
			ids = append(ids, id)
		}
		p.Batches = append(p.Batches, pb)
		if len(ids) > 0 {
			batches = append(batches, ids)
		}
	}

	if len(batches) == 0 {
		return p, nil, ErrEmptyPlan
	}
	return p, batches, nil
}

func valueOf(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// BuildExecutionPlan renders a schedule as an execution plan document.
// batchSize is the configured chunk size of the simple strategy; it is
// ignored for other strategies.
func BuildExecutionPlan(s *models.Schedule, sum schedule.Summary, strategy models.Strategy, batchSize int) *models.ExecutionPlan {
	p := &models.ExecutionPlan{
		TotalTasks:   s.TaskCount(),
		TotalBatches: s.Len(),
		DependenciesSummary: models.DependenciesSummary{
			CriticalPath:               sum.CriticalPath,
			ParallelizationPotential:   sum.Potential,
			ParallelizationExplanation: sum.Explanation,
		},
	}
	if s == nil {
		return p
	}

	start := 1
	for i, b := range s.Batches {
		pb := models.PlanBatch{
			BatchID:  i + 1,
			Strategy: "sequential",
		}

		switch {
		case b.Degraded:
			pb.Description = fmt.Sprintf("Batch %d - tasks with unresolved dependencies", i+1)
			pb.ParallelizationRationale = "Dependencies among these tasks could not be ordered; they are grouped without ordering guarantees"
		case strategy == models.StrategySimple:
			pb.Description = fmt.Sprintf("Batch %d - Tasks %d to %d", i+1, start, start+b.Len()-1)
			size := batchSize
			if size <= 0 {
				size = b.Len()
			}
			pb.ParallelizationRationale = fmt.Sprintf("Fixed batch size of up to %d tasks running in parallel", size)
		case i == 0:
			pb.Description = fmt.Sprintf("Batch %d - tasks with no pending dependencies", i+1)
			pb.ParallelizationRationale = "All tasks have no dependencies within the plan"
		default:
			pb.Description = fmt.Sprintf("Batch %d - tasks unblocked by earlier batches", i+1)
			pb.ParallelizationRationale = "All dependencies from previous batches are satisfied"
		}
		start += b.Len()

		for _, t := range b.Tasks {
			pb.Tasks = append(pb.Tasks, models.BatchTask{
				TaskID:   t.ID,
				TaskName: t.Name,
				Reason:   placementReason(s, t, i, b.Degraded, strategy),
			})
		}
		p.Batches = append(p.Batches, pb)
	}
	return p
}

func placementReason(s *models.Schedule, t models.Task, batch int, degraded bool, strategy models.Strategy) string {
	if degraded {
		return "Dependencies could not be resolved"
	}
	if strategy == models.StrategySimple {
		return fmt.Sprintf("Part of batch %d", batch+1)
	}
	latest := -1
	for _, dep := range t.DependsOn() {
		if j := s.BatchOf(dep); j > latest && j < batch {
			latest = j
		}
	}
	if latest < 0 {
		return "No dependencies"
	}
	return fmt.Sprintf("Depends on batch %d", latest+1)
}

// Marshal encodes an execution plan. YAML output is wrapped in the
// execution_plan key so it can be read back by ParseExecutionPlan.
func Marshal(p *models.ExecutionPlan, format Format) ([]byte, error) {
	switch format {
	case FormatYAML, "":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		wrapped := struct {
			ExecutionPlan *models.ExecutionPlan `yaml:"execution_plan"`
		}{p}
		if err := enc.Encode(wrapped); err != nil {
			return nil, fmt.Errorf("encode yaml plan: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON:
		out, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json plan: %w", err)
		}
		return append(out, '\n'), nil
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(p); err != nil {
			return nil, fmt.Errorf("encode toml plan: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
