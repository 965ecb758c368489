// Package config handles configuration loading and management for taskbatch.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// ProjectConfigName is the project-level override file.
const ProjectConfigName = ".taskbatch.yaml"

// Config holds all configuration for taskbatch.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Runner    RunnerConfig    `mapstructure:"runner"`
	State     StateConfig     `mapstructure:"state"`
	Log       LogConfig       `mapstructure:"log"`
}

// AnthropicConfig holds settings for the plan proposer's model client.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	BaseURL    string `mapstructure:"base_url"`
}

// ScheduleConfig holds scheduling defaults.
type ScheduleConfig struct {
	// Strategy is greedy, simple or ai.
	Strategy string `mapstructure:"strategy"`
	// BatchSize is the chunk size of the simple strategy.
	BatchSize int `mapstructure:"batch_size"`
}

// RunnerConfig holds batch execution defaults.
type RunnerConfig struct {
	MaxParallel     int           `mapstructure:"max_parallel"`
	TaskTimeout     time.Duration `mapstructure:"task_timeout"`
	ContinueOnError bool          `mapstructure:"continue_on_error"`
	SerialDegraded  bool          `mapstructure:"serial_degraded"`
	Shell           string        `mapstructure:"shell"`
}

// StateConfig holds run history settings.
type StateConfig struct {
	// Driver is the database/sql driver: sqlite (pure Go) or sqlite3 (cgo).
	Driver string `mapstructure:"driver"`
	// Path overrides the project-local database path.
	Path string `mapstructure:"path"`
	// Disabled turns off run history.
	Disabled bool `mapstructure:"disabled"`
}

// LogConfig holds debug logging settings.
type LogConfig struct {
	// DebugPath enables the debug trace file when set.
	DebugPath string `mapstructure:"debug_path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, TASKBATCH_*)
// 2. Project config (.taskbatch.yaml in the current directory or a parent)
// 3. User config (~/.config/taskbatch/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v, err := load()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

// Lookup returns the effective value of a dotted key such as
// "runner.max_parallel".
func Lookup(key string) (interface{}, error) {
	if !IsKey(key) {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	return v.Get(key), nil
}

// Settings returns every effective key and value.
func Settings() (map[string]interface{}, error) {
	v, err := load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{})
	for _, k := range Keys() {
		out[k] = v.Get(k)
	}
	return out, nil
}

// Keys returns the known config keys in sorted order.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// IsKey reports whether key is a known config key.
func IsKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// Set writes one key to the user config file, keeping the other keys
// already stored there.
func Set(key, value string) error {
	if !IsKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}

	dir := getUserConfigDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	path := filepath.Join(dir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading user config: %w", err)
		}
	}
	typed, err := typedValue(key, value)
	if err != nil {
		return err
	}
	v.Set(key, typed)

	// Validate the result decodes before writing it.
	check := viper.New()
	setDefaults(check)
	if err := check.MergeConfigMap(v.AllSettings()); err != nil {
		return fmt.Errorf("merging config: %w", err)
	}
	if _, err := decode(check); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	return v.WriteConfigAs(path)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findProjectConfig(cwd)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Schedule: ScheduleConfig{
			Strategy:  "greedy",
			BatchSize: 3,
		},
		Runner: RunnerConfig{
			Shell: "sh",
		},
		State: StateConfig{
			Driver: "sqlite",
		},
	}
}

func load() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := GetProjectConfigPath(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	v.SetEnvPrefix("TASKBATCH")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if !models.Strategy(c.Schedule.Strategy).Valid() {
		return fmt.Errorf("schedule.strategy: unknown strategy %q", c.Schedule.Strategy)
	}
	if c.Schedule.BatchSize < 1 {
		return fmt.Errorf("schedule.batch_size must be at least 1, got %d", c.Schedule.BatchSize)
	}
	if c.Runner.MaxParallel < 0 {
		return fmt.Errorf("runner.max_parallel must not be negative, got %d", c.Runner.MaxParallel)
	}
	if c.Runner.TaskTimeout < 0 {
		return fmt.Errorf("runner.task_timeout must not be negative, got %s", c.Runner.TaskTimeout)
	}
	switch c.State.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("state.driver: unsupported driver %q", c.State.Driver)
	}
	return nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("anthropic.api_key", d.Anthropic.APIKey)
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.use_bedrock", d.Anthropic.UseBedrock)
	v.SetDefault("anthropic.aws_region", d.Anthropic.AWSRegion)
	v.SetDefault("anthropic.aws_profile", d.Anthropic.AWSProfile)
	v.SetDefault("anthropic.base_url", d.Anthropic.BaseURL)

	v.SetDefault("schedule.strategy", d.Schedule.Strategy)
	v.SetDefault("schedule.batch_size", d.Schedule.BatchSize)

	v.SetDefault("runner.max_parallel", d.Runner.MaxParallel)
	v.SetDefault("runner.task_timeout", "0s")
	v.SetDefault("runner.continue_on_error", d.Runner.ContinueOnError)
	v.SetDefault("runner.serial_degraded", d.Runner.SerialDegraded)
	v.SetDefault("runner.shell", d.Runner.Shell)

	v.SetDefault("state.driver", d.State.Driver)
	v.SetDefault("state.path", d.State.Path)
	v.SetDefault("state.disabled", d.State.Disabled)

	v.SetDefault("log.debug_path", d.Log.DebugPath)
}

// getUserConfigDir returns the XDG config directory for taskbatch.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "taskbatch")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "taskbatch")
	}
	return filepath.Join(home, ".config", "taskbatch")
}

// findProjectConfig searches for .taskbatch.yaml in dir and its parents.
func findProjectConfig(dir string) string {
	for {
		configPath := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
