package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskbatch/internal/config"
	"github.com/ShayCichocki/taskbatch/internal/runner"
	"github.com/ShayCichocki/taskbatch/internal/state"
	"github.com/ShayCichocki/taskbatch/pkg/models"
)

var (
	runPlan            planFlags
	runExec            string
	runMaxParallel     int
	runTimeout         time.Duration
	runContinueOnError bool
	runNoHistory       bool
	runDir             string
)

var runCmd = &cobra.Command{
	Use:   "run <tasks-file> --exec <command>",
	Short: "Schedule a task file and run every task batch by batch",
	Long: `Schedule a task file, then run a shell command for every task.

Tasks of one batch run concurrently; the next batch starts only after every
task of the current batch finished. The command is a Go template rendered
per task with {{.ID}}, {{.Name}} and {{.Context}}, and the task is also
exported as TASKBATCH_TASK_ID, TASKBATCH_TASK_NAME and TASKBATCH_TASK_CONTEXT.

By default the run stops after the first batch with a failed task and the
remaining tasks are skipped. Use --continue-on-error to run them anyway.

Results are recorded in .taskbatch/state.db; see 'taskbatch history'.`,
	Args: cobra.ExactArgs(1),
	RunE: runTasks,
}

func init() {
	runPlan.register(runCmd)
	runCmd.Flags().StringVarP(&runExec, "exec", "e", "", "Command template run for every task (required)")
	runCmd.Flags().IntVarP(&runMaxParallel, "max-parallel", "p", 0, "Maximum concurrent tasks per batch, 0 for unbounded (default from config)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-task timeout, 0 for none (default from config)")
	runCmd.Flags().BoolVar(&runContinueOnError, "continue-on-error", false, "Run later batches even after a task failed")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record the run in the history database")
	runCmd.Flags().StringVar(&runDir, "dir", "", "Working directory for task commands")
	runCmd.MarkFlagRequired("exec")
}

func runTasks(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	p, err := planFile(ctx, args[0], runPlan, cfg, dlog, errOut)
	if err != nil {
		return err
	}

	executor, err := runner.NewCommandExecutor(runner.CommandConfig{
		Template: runExec,
		Shell:    cfg.Runner.Shell,
		Dir:      runDir,
	})
	if err != nil {
		return err
	}

	rcfg := runnerConfig(cmd, cfg)
	rcfg.Logger = dlog
	rcfg.OnEvent = printEvent(out)

	var db *state.DB
	if !runNoHistory && !cfg.State.Disabled {
		db, err = openHistory(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		absPath, _ := filepath.Abs(args[0])
		s := p.result.Schedule
		rec := &state.Run{
			Source:     absPath,
			Strategy:   p.result.Strategy,
			Degraded:   s.Degraded,
			BatchCount: s.Len(),
			TaskCount:  s.TaskCount(),
		}
		if err := db.CreateRun(ctx, rec); err != nil {
			return err
		}
		rcfg.RunID = rec.ID
		rcfg.Recorder = db
	}

	report, runErr := runner.New(executor, rcfg).Run(ctx, p.result.Schedule)

	if db != nil {
		if err := db.FinishRun(context.WithoutCancel(ctx), report.RunID, report.Status, report.FinishedAt); err != nil {
			fmt.Fprintf(errOut, "%s record run: %v\n", color.YellowString("warning:"), err)
		}
	}

	writeReport(out, report)

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, runner.ErrTasksFailed):
		return errSilent
	default:
		return runErr
	}
}

// runnerConfig merges run flags over the runner config section.
func runnerConfig(cmd *cobra.Command, cfg *config.Config) runner.Config {
	rc := runner.Config{
		MaxParallel:     cfg.Runner.MaxParallel,
		TaskTimeout:     cfg.Runner.TaskTimeout,
		ContinueOnError: cfg.Runner.ContinueOnError,
		SerialDegraded:  cfg.Runner.SerialDegraded,
	}
	flags := cmd.Flags()
	if flags.Changed("max-parallel") {
		rc.MaxParallel = runMaxParallel
	}
	if flags.Changed("timeout") {
		rc.TaskTimeout = runTimeout
	}
	if flags.Changed("continue-on-error") {
		rc.ContinueOnError = runContinueOnError
	}
	return rc
}

// openHistory opens the run history database selected by the state section.
func openHistory(cfg *config.Config) (*state.DB, error) {
	if cfg.State.Path != "" {
		db, err := state.Open(cfg.State.Path, cfg.State.Driver)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		return db, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return state.OpenProject(cwd, cfg.State.Driver)
}

// historyPath returns the database path openHistory would use.
func historyPath(cfg *config.Config) (string, error) {
	if cfg.State.Path != "" {
		return cfg.State.Path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return state.ProjectDBPath(cwd), nil
}

// printEvent returns a handler that prints run progress to w.
func printEvent(w io.Writer) runner.EventHandler {
	return func(ev runner.Event) {
		switch ev.Type {
		case runner.EventBatchStarted:
			fmt.Fprintf(w, "%s %s\n", color.CyanString("▶"), color.New(color.Bold).Sprint(ev.Message))
		case runner.EventTaskStarted:
			fmt.Fprintf(w, "  %s %s %s\n", color.HiBlackString("…"), ev.TaskID, color.HiBlackString("%s", ev.TaskName))
		case runner.EventTaskCompleted:
			fmt.Fprintf(w, "  %s %s (%s)\n", color.GreenString("✓"), ev.TaskID, formatDuration(ev.Duration))
		case runner.EventTaskFailed:
			fmt.Fprintf(w, "  %s %s (%s): %s\n", color.RedString("✗"), ev.TaskID, formatDuration(ev.Duration), firstLine(ev.Message, 120))
		case runner.EventTaskSkipped:
			fmt.Fprintf(w, "  %s %s skipped: %s\n", color.YellowString("-"), ev.TaskID, ev.Message)
		}
	}
}

func writeReport(w io.Writer, rep *runner.Report) {
	counts := rep.Counts()
	fmt.Fprintf(w, "\n%s %s in %s: %d done, %d failed, %d canceled\n",
		color.New(color.Bold).Sprint("Run"), statusString(rep.Status),
		formatDuration(rep.FinishedAt.Sub(rep.StartedAt)),
		counts[models.RunStatusDone], counts[models.RunStatusFailed], counts[models.RunStatusCanceled])
	if rep.StoppedAfter >= 0 {
		fmt.Fprintf(w, "%s stopped after batch %d\n", color.YellowString("note:"), rep.StoppedAfter+1)
	}
	for _, f := range rep.Failed() {
		fmt.Fprintf(w, "  %s %s: %s\n", color.RedString("✗"), f.TaskID, firstLine(f.Error, 200))
	}
	fmt.Fprintf(w, "%s %s\n", color.HiBlackString("run id:"), rep.RunID)
}
