package exec

import (
	"context"
	"os"
	"os/exec"
	"time"
)

// DefaultShell is used when a Command names no shell.
const DefaultShell = "sh"

// waitDelay bounds how long output pipes are drained after the context
// kills the process.
const waitDelay = 2 * time.Second

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

// NewRunner creates a new ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// RunShell executes a shell command through "<shell> -c".
func (r *ExecRunner) RunShell(ctx context.Context, c Command) ([]byte, error) {
	shell := c.Shell
	if shell == "" {
		shell = DefaultShell
	}
	cmd := exec.CommandContext(ctx, shell, "-c", c.Script)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.WaitDelay = waitDelay
	return cmd.CombinedOutput()
}

// Verify ExecRunner implements CommandRunner at compile time.
var _ CommandRunner = (*ExecRunner)(nil)
