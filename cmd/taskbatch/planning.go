package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskbatch/internal/api"
	"github.com/ShayCichocki/taskbatch/internal/config"
	"github.com/ShayCichocki/taskbatch/internal/logging"
	"github.com/ShayCichocki/taskbatch/internal/plan"
	"github.com/ShayCichocki/taskbatch/internal/planner"
	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// planFlags holds the scheduling flags shared by schedule and run.
type planFlags struct {
	strategy  string
	batchSize int
	planPath  string
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "Scheduling strategy: greedy, simple or ai (default from config)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "Tasks per batch for the simple strategy (default from config)")
	cmd.Flags().StringVar(&f.planPath, "plan", "", "Use a proposed execution plan file, validated against the tasks")
}

// resolve fills unset flags from cfg.
func (f planFlags) resolve(cfg *config.Config) (models.Strategy, int, error) {
	strategy := models.Strategy(f.strategy)
	if strategy == "" {
		strategy = models.Strategy(cfg.Schedule.Strategy)
	}
	if !strategy.Valid() {
		return "", 0, fmt.Errorf("%w: %q", planner.ErrUnknownStrategy, strategy)
	}
	size := f.batchSize
	if size <= 0 {
		size = cfg.Schedule.BatchSize
	}
	return strategy, size, nil
}

// warnReporter prints scheduling diagnostics as yellow warning lines.
type warnReporter struct {
	w io.Writer
}

func (r warnReporter) Warn(msg string, _ []models.TaskID) {
	fmt.Fprintf(r.w, "%s %s\n", color.YellowString("warning:"), msg)
}

// planned is a planning result together with the tasks it schedules.
type planned struct {
	tasks  []models.Task
	result *planner.Result
	client *api.Client
}

// planFile loads path and schedules it according to flags and cfg.
// Warnings go to warn.
func planFile(ctx context.Context, path string, flags planFlags, cfg *config.Config, dlog *logging.DebugLogger, warn io.Writer) (*planned, error) {
	tasks, err := plan.LoadTasks(path)
	if err != nil {
		return nil, err
	}

	strategy, size, err := flags.resolve(cfg)
	if err != nil {
		return nil, err
	}

	opts := []planner.Option{
		planner.WithBatchSize(size),
		planner.WithReporter(warnReporter{w: warn}),
		planner.WithDebugLog(dlog.Component("planner")),
	}

	p := &planned{tasks: tasks}

	if flags.planPath != "" {
		doc, err := os.ReadFile(flags.planPath)
		if err != nil {
			return nil, fmt.Errorf("read plan: %w", err)
		}
		p.result, err = planner.FromDocument(tasks, doc, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	var proposer planner.Proposer
	if strategy == models.StrategyAI {
		client, err := newClient(cfg)
		if err != nil {
			// The planner reports the missing proposer and falls back.
			dlog.Log("[cli] no proposer: %v", err)
		} else {
			p.client = client
			proposer = planner.NewClaude(client)
		}
	}

	p.result, err = planner.Plan(ctx, tasks, strategy, proposer, opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// newClient builds the Anthropic client from the anthropic config section.
func newClient(cfg *config.Config) (*api.Client, error) {
	key, _, err := config.ResolveAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	return api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        key,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
		BaseURL:       cfg.Anthropic.BaseURL,
	})
}
