package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskbatch/internal/config"
	"github.com/ShayCichocki/taskbatch/internal/logging"
	"github.com/ShayCichocki/taskbatch/internal/watch"
)

var (
	schedulePlan   planFlags
	scheduleFormat string
	scheduleOutput string
	scheduleWatch  bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <tasks-file>",
	Short: "Group tasks into dependency-ordered batches",
	Long: `Compute an execution schedule for a task file.

Tasks in the same batch have no dependencies on each other and can run
concurrently; every batch depends only on earlier batches. Dependencies on
task IDs that are not in the file are treated as already satisfied.

Output formats (--format):
  - text: colored summary (default)
  - yaml, json, toml: execution plan document

With --watch, the schedule is recomputed every time the task file changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runSchedule,
}

func init() {
	schedulePlan.register(scheduleCmd)
	scheduleCmd.Flags().StringVarP(&scheduleFormat, "format", "f", outputText, "Output format: text, yaml, json or toml")
	scheduleCmd.Flags().StringVarP(&scheduleOutput, "output", "o", "", "Write the schedule to this file instead of stdout")
	scheduleCmd.Flags().BoolVarP(&scheduleWatch, "watch", "w", false, "Recompute the schedule when the task file changes")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dlog, err := openDebugLog(cfg)
	if err != nil {
		return err
	}
	defer dlog.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := args[0]
	if err := emitSchedule(ctx, path, cfg, dlog, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
		if !scheduleWatch {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.RedString("Error:"), err)
	}
	if !scheduleWatch {
		return nil
	}

	w, err := watch.New(path, 0, func(string) {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%s %s changed, rescheduling\n", color.CyanString("watch:"), path)
		if err := emitSchedule(ctx, path, cfg, dlog, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.RedString("Error:"), err)
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s watching %s (Ctrl+C to stop)\n", color.CyanString("watch:"), w.Path())
	return w.Run(ctx)
}

// emitSchedule plans path and writes the rendering to --output or out.
func emitSchedule(ctx context.Context, path string, cfg *config.Config, dlog *logging.DebugLogger, out, errOut io.Writer) error {
	p, err := planFile(ctx, path, schedulePlan, cfg, dlog, errOut)
	if err != nil {
		return err
	}
	if p.client != nil {
		dlog.Log("[cli] proposer usage: %s", p.client.Tracker())
	}

	if scheduleOutput == "" {
		return renderResult(out, p, scheduleFormat)
	}

	var buf bytes.Buffer
	if err := renderResult(&buf, p, scheduleFormat); err != nil {
		return err
	}
	if err := os.WriteFile(scheduleOutput, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}
	fmt.Fprintf(errOut, "%s wrote %d batch(es) to %s\n", color.GreenString("✓"), p.result.Schedule.Len(), scheduleOutput)
	return nil
}
