package runner

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	iexec "github.com/ShayCichocki/taskbatch/internal/exec"
	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// Executor performs the work of one task.
type Executor interface {
	Execute(ctx context.Context, task models.Task) (output string, err error)
}

// ExecFunc adapts a function to the Executor interface.
type ExecFunc func(ctx context.Context, task models.Task) (string, error)

// Execute calls f(ctx, task).
func (f ExecFunc) Execute(ctx context.Context, task models.Task) (string, error) {
	return f(ctx, task)
}

// CommandExecutor runs a shell command per task. The command is a
// text/template rendered with the task, so {{.ID}}, {{.Name}} and
// {{.Context}} are available. The task is also exported to the command as
// TASKBATCH_TASK_ID, TASKBATCH_TASK_NAME and TASKBATCH_TASK_CONTEXT.
type CommandExecutor struct {
	tmpl   *template.Template
	runner iexec.CommandRunner
	shell  string
	dir    string
}

// CommandConfig configures a CommandExecutor.
type CommandConfig struct {
	// Template is the command text.
	Template string
	// Shell runs the command. Empty means "sh".
	Shell string
	// Dir is the working directory for every command.
	Dir string
	// Runner executes commands. Nil uses the os/exec runner.
	Runner iexec.CommandRunner
}

// NewCommandExecutor parses the command template.
func NewCommandExecutor(cfg CommandConfig) (*CommandExecutor, error) {
	if strings.TrimSpace(cfg.Template) == "" {
		return nil, fmt.Errorf("command template is empty")
	}
	tmpl, err := template.New("command").Option("missingkey=error").Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("parse command template: %w", err)
	}
	r := cfg.Runner
	if r == nil {
		r = iexec.NewRunner()
	}
	return &CommandExecutor{tmpl: tmpl, runner: r, shell: cfg.Shell, dir: cfg.Dir}, nil
}

// Render returns the command text for task.
func (e *CommandExecutor) Render(task models.Task) (string, error) {
	var b strings.Builder
	if err := e.tmpl.Execute(&b, task); err != nil {
		return "", fmt.Errorf("render command for task %s: %w", task.ID, err)
	}
	return b.String(), nil
}

// Execute implements Executor.
func (e *CommandExecutor) Execute(ctx context.Context, task models.Task) (string, error) {
	script, err := e.Render(task)
	if err != nil {
		return "", err
	}
	out, err := e.runner.RunShell(ctx, iexec.Command{
		Shell:  e.shell,
		Script: script,
		Dir:    e.dir,
		Env: []string{
			"TASKBATCH_TASK_ID=" + string(task.ID),
			"TASKBATCH_TASK_NAME=" + task.Name,
			"TASKBATCH_TASK_CONTEXT=" + task.Context,
		},
	})
	if err != nil {
		return string(out), fmt.Errorf("command failed: %w", err)
	}
	return string(out), nil
}

var _ Executor = (*CommandExecutor)(nil)
