package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Schedule.Strategy != "greedy" {
		t.Errorf("expected default strategy 'greedy', got %q", cfg.Schedule.Strategy)
	}
	if cfg.Schedule.BatchSize != 3 {
		t.Errorf("expected default batch size 3, got %d", cfg.Schedule.BatchSize)
	}
	if cfg.Runner.Shell != "sh" {
		t.Errorf("expected default shell 'sh', got %q", cfg.Runner.Shell)
	}
	if cfg.State.Driver != "sqlite" {
		t.Errorf("expected default driver 'sqlite', got %q", cfg.State.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
  use_bedrock: true
  aws_region: us-west-2
schedule:
  strategy: simple
  batch_size: 5
runner:
  max_parallel: 4
  task_timeout: 90s
  continue_on_error: true
state:
  driver: sqlite3
log:
  debug_path: /tmp/taskbatch.log
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}
	if !cfg.Anthropic.UseBedrock || cfg.Anthropic.AWSRegion != "us-west-2" {
		t.Errorf("unexpected anthropic section: %+v", cfg.Anthropic)
	}
	if cfg.Schedule.Strategy != "simple" || cfg.Schedule.BatchSize != 5 {
		t.Errorf("unexpected schedule section: %+v", cfg.Schedule)
	}
	if cfg.Runner.MaxParallel != 4 {
		t.Errorf("expected max_parallel 4, got %d", cfg.Runner.MaxParallel)
	}
	if cfg.Runner.TaskTimeout != 90*time.Second {
		t.Errorf("expected task_timeout 90s, got %v", cfg.Runner.TaskTimeout)
	}
	if !cfg.Runner.ContinueOnError {
		t.Error("expected continue_on_error to be true")
	}
	if cfg.Runner.Shell != "sh" {
		t.Errorf("expected default shell to survive, got %q", cfg.Runner.Shell)
	}
	if cfg.State.Driver != "sqlite3" {
		t.Errorf("expected driver 'sqlite3', got %q", cfg.State.Driver)
	}
	if cfg.Log.DebugPath != "/tmp/taskbatch.log" {
		t.Errorf("expected debug_path, got %q", cfg.Log.DebugPath)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown strategy", "schedule:\n  strategy: random\n"},
		{"zero batch size", "schedule:\n  batch_size: 0\n"},
		{"negative parallelism", "runner:\n  max_parallel: -1\n"},
		{"unknown driver", "state:\n  driver: postgres\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFromPath(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	if got := expandEnv("${TEST_VAR}"); got != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", got)
	}
	if got := expandEnv("prefix-${TEST_VAR}-suffix"); got != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", got)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := filepath.Join("/custom/config", "taskbatch")
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestFindProjectConfig_WalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, ProjectConfigName)
	if err := os.WriteFile(want, []byte("schedule:\n  strategy: simple\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if got := findProjectConfig(nested); got != want {
		t.Errorf("findProjectConfig() = %q, want %q", got, want)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	for _, k := range []string{"anthropic.api_key", "schedule.strategy", "runner.max_parallel", "state.driver", "log.debug_path"} {
		if !IsKey(k) {
			t.Errorf("missing key %q in %v", k, keys)
		}
	}
	if IsKey("defaults.tier") {
		t.Error("unexpected key defaults.tier")
	}
}

func TestSet_WritesUserConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := Set("runner.max_parallel", "6"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := Set("schedule.strategy", "simple"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	cfg, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Runner.MaxParallel != 6 {
		t.Errorf("max_parallel = %d, want 6", cfg.Runner.MaxParallel)
	}
	if cfg.Schedule.Strategy != "simple" {
		t.Errorf("strategy = %q, want simple", cfg.Schedule.Strategy)
	}
}

func TestSet_Rejects(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := Set("nope.key", "1"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := Set("runner.max_parallel", "many"); err == nil {
		t.Error("expected error for non-integer value")
	}
	if err := Set("schedule.strategy", "random"); err == nil {
		t.Error("expected error for invalid strategy")
	}
	if _, err := os.Stat(GetUserConfigPath()); !os.IsNotExist(err) {
		t.Error("rejected values should not create a config file")
	}
}
