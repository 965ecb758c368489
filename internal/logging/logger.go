// Package logging provides the file-backed debug trace used across taskbatch.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger writes timestamped trace lines to a file.
// A nil logger or one without a writer discards everything.
type DebugLogger struct {
	mu sync.Mutex
	w  io.Writer
	f  *os.File
}

// NewDebugLogger creates a logger appending to logPath.
// If the path is empty, returns a no-op logger.
// Creates parent directories if they don't exist.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &DebugLogger{w: f, f: f}
	l.Log("=== taskbatch debug log started at %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// ProjectLogPath returns the default debug log location under a project directory.
func ProjectLogPath(projectDir string) string {
	return filepath.Join(projectDir, ".taskbatch", "logs", "debug.log")
}

// NopLogger returns a no-op logger for testing or when logging is disabled.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Enabled reports whether log lines go anywhere.
func (l *DebugLogger) Enabled() bool {
	return l != nil && l.w != nil
}

// Log writes a timestamped message to the debug log.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if !l.Enabled() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.w, "[%s] %s\n", time.Now().Format("15:04:05.000"), msg)
	if l.f != nil {
		l.f.Sync()
	}
}

// Component returns a log function that prefixes every line with
// "[component] ". It matches the debugLog hooks taken by the scheduler and
// planner.
func (l *DebugLogger) Component(component string) func(format string, args ...interface{}) {
	prefix := "[" + component + "] "
	return func(format string, args ...interface{}) {
		l.Log(prefix+format, args...)
	}
}

// Close closes the log file.
// Safe to call on nil logger or logger without file.
func (l *DebugLogger) Close() error {
	if l == nil || l.f == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.f.Close()
}
