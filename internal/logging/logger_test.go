package logging

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestDebugLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "debug.log")

	l, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger failed: %v", err)
	}
	l.Log("batch %d ready", 2)
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "debug log started") {
		t.Errorf("log missing header:\n%s", data)
	}
	if !regexp.MustCompile(`\[\d{2}:\d{2}:\d{2}\.\d{3}\] batch 2 ready`).Match(data) {
		t.Errorf("log missing timestamped line:\n%s", data)
	}
}

func TestDebugLogger_Component(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	l, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger failed: %v", err)
	}
	l.Component("schedule")("layering %d tasks", 3)
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "[schedule] layering 3 tasks") {
		t.Errorf("output = %q", data)
	}
}

func TestDebugLogger_Nop(t *testing.T) {
	var nilLogger *DebugLogger
	nilLogger.Log("ignored")
	if nilLogger.Enabled() || NopLogger().Enabled() {
		t.Error("nop loggers should be disabled")
	}
	if err := nilLogger.Close(); err != nil {
		t.Errorf("Close on nil logger = %v", err)
	}

	l, err := NewDebugLogger("")
	if err != nil || l.Enabled() {
		t.Errorf("NewDebugLogger(\"\") = %v, %v; want disabled logger", l, err)
	}
}

func TestProjectLogPath(t *testing.T) {
	want := filepath.Join("/repo", ".taskbatch", "logs", "debug.log")
	if got := ProjectLogPath("/repo"); got != want {
		t.Errorf("ProjectLogPath = %q, want %q", got, want)
	}
}
