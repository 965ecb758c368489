// Package planner chooses and runs a batching strategy for a task set.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/taskbatch/internal/plan"
)

// Proposer produces an execution plan document for a task list.
type Proposer interface {
	Propose(ctx context.Context, tasksYAML string) (string, error)
}

// ProposerFunc adapts a function to the Proposer interface.
type ProposerFunc func(ctx context.Context, tasksYAML string) (string, error)

// Propose calls f(ctx, tasksYAML).
func (f ProposerFunc) Propose(ctx context.Context, tasksYAML string) (string, error) {
	return f(ctx, tasksYAML)
}

// Completer sends a single prompt to a model. *api.Client implements it.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Claude asks a Claude model for an execution plan.
type Claude struct {
	client Completer
}

// NewClaude creates a proposer backed by client.
func NewClaude(client Completer) *Claude {
	return &Claude{client: client}
}

const systemPrompt = `You plan batch execution for dependent tasks.
Group tasks into batches so that every task's requires_completion_of
dependencies sit in earlier batches. Batches run one after another and the
tasks inside a batch run in parallel, so put as many tasks as possible in
each batch. Identify the critical path. Reply with YAML only.`

const planTemplate = `execution_plan:
  total_tasks: <number>
  total_batches: <number>
  batches:
    - batch_id: 1
      description: "<what this batch accomplishes>"
      strategy: "sequential"
      tasks:
        - task_id: <id>
          task_name: "<name>"
          reason: "<why the task is in this batch>"
      parallelization_rationale: "<why these tasks can run together>"
  dependencies_summary:
    critical_path: [<id>, <id>]
    parallelization_potential: "<low|medium|high>"
    parallelization_explanation: "<summary>"`

// Propose implements Proposer.
func (c *Claude) Propose(ctx context.Context, tasksYAML string) (string, error) {
	var b strings.Builder
	b.WriteString("Generate an execution plan for these tasks.\n\n# Tasks\n```yaml\n")
	b.WriteString(strings.TrimSpace(tasksYAML))
	b.WriteString("\n```\n\n# Template\n```yaml\n")
	b.WriteString(planTemplate)
	b.WriteString("\n```\n")

	reply, err := c.client.Complete(ctx, systemPrompt, b.String())
	if err != nil {
		return "", fmt.Errorf("propose plan: %w", err)
	}
	return plan.ExtractYAML(reply), nil
}
