package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskbatch/internal/config"
	"github.com/ShayCichocki/taskbatch/internal/logging"
)

var (
	rootConfigPath string
	rootDebugLog   string
	rootDebug      bool
	rootNoColor    bool
)

// errSilent marks a failure that was already reported to the user.
var errSilent = errors.New("command failed")

var rootCmd = &cobra.Command{
	Use:   "taskbatch",
	Short: "Dependency-aware batch scheduler for task plans",
	Long: `taskbatch groups a set of dependent tasks into ordered batches.

Every task in a batch can run concurrently, and each batch only depends on
tasks from earlier batches. Tasks are read from YAML, JSON or TOML files.

Strategies (--strategy):
  - greedy: each batch holds every task whose dependencies are already scheduled (default)
  - simple: fixed-size chunks in input order, ignoring dependencies
  - ai:     ask Claude for a plan, keep it only if it respects every dependency

Unresolvable dependency cycles never abort scheduling: the affected tasks
are placed in a final batch and reported as a warning.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if rootNoColor {
			color.NoColor = true
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Config file (default: user config merged with .taskbatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootDebugLog, "debug-log", "", "Write a debug trace to this file")
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Write a debug trace to .taskbatch/logs/debug.log")
	rootCmd.PersistentFlags().BoolVar(&rootNoColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig returns the effective configuration for this invocation.
func loadConfig() (*config.Config, error) {
	if rootConfigPath != "" {
		return config.LoadFromPath(rootConfigPath)
	}
	return config.Load()
}

// openDebugLog opens the debug trace selected by --debug-log, --debug or
// log.debug_path, in that order.
func openDebugLog(cfg *config.Config) (*logging.DebugLogger, error) {
	path, err := debugLogPath(cfg)
	if err != nil {
		return nil, err
	}
	return logging.NewDebugLogger(path)
}

func debugLogPath(cfg *config.Config) (string, error) {
	switch {
	case rootDebugLog != "":
		return rootDebugLog, nil
	case rootDebug:
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		return logging.ProjectLogPath(cwd), nil
	default:
		return cfg.Log.DebugPath, nil
	}
}
