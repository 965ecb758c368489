// Package exec runs shell commands on behalf of tasks.
package exec

import (
	"context"
)

// Command is a shell script invocation.
type Command struct {
	// Shell is the interpreter, invoked as "<shell> -c <script>". Empty means "sh".
	Shell string
	// Script is the command text.
	Script string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the process environment.
	Env []string
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// RunShell executes cmd and returns combined stdout/stderr output.
	RunShell(ctx context.Context, cmd Command) (output []byte, err error)
}
