package planner

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ShayCichocki/taskbatch/internal/plan"
	"github.com/ShayCichocki/taskbatch/internal/schedule"
	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// ErrUnknownStrategy indicates an unsupported strategy name.
var ErrUnknownStrategy = errors.New("unknown strategy")

// ErrNoProposer indicates the ai strategy was requested without a proposer.
var ErrNoProposer = errors.New("no plan proposer configured")

// Result is the outcome of planning a task set.
type Result struct {
	Schedule *models.Schedule
	// Requested is the strategy the caller asked for.
	Requested models.Strategy
	// Strategy is the strategy that produced Schedule.
	Strategy models.Strategy
	// Proposed is the externally proposed plan, when one was parsed.
	Proposed *models.ExecutionPlan
	// Violations explains why a proposed plan was rejected.
	Violations []schedule.Violation
	// Fallback is set when a requested strategy could not be used.
	Fallback error
	// BatchSize is the chunk size the simple strategy used.
	BatchSize int
}

// Summary analyzes the result schedule.
func (r *Result) Summary(tasks []models.Task) schedule.Summary {
	return schedule.Analyze(tasks, r.Schedule)
}

// Document renders the result as an execution plan document.
func (r *Result) Document(tasks []models.Task) *models.ExecutionPlan {
	return plan.BuildExecutionPlan(r.Schedule, r.Summary(tasks), r.Strategy, r.BatchSize)
}

// Option configures planning.
type Option func(*options)

type options struct {
	batchSize int
	reporter  schedule.Reporter
	debugLog  func(format string, args ...interface{})
}

// WithBatchSize sets the chunk size for the simple strategy.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithReporter sets the sink for scheduling and fallback diagnostics.
func WithReporter(r schedule.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithDebugLog sets a trace logging function.
func WithDebugLog(fn func(format string, args ...interface{})) Option {
	return func(o *options) { o.debugLog = fn }
}

func (o *options) scheduleOpts() []schedule.Option {
	return []schedule.Option{schedule.WithReporter(o.reporter), schedule.WithDebugLog(o.debugLog)}
}

func (o *options) warn(msg string, ids []models.TaskID) {
	if o.reporter != nil {
		o.reporter.Warn(msg, ids)
	}
}

// Plan schedules tasks with the requested strategy. The ai strategy asks
// proposer for a plan and keeps it only if it respects every dependency;
// any failure on that path falls back to the greedy schedule rather than
// failing the call. Errors are returned only for invalid task sets and
// unknown strategies.
func Plan(ctx context.Context, tasks []models.Task, strategy models.Strategy, proposer Proposer, opts ...Option) (*Result, error) {
	o := &options{debugLog: func(format string, args ...interface{}) {}}
	for _, opt := range opts {
		opt(o)
	}

	res := &Result{Requested: strategy, Strategy: strategy}
	var err error

	switch strategy {
	case models.StrategyGreedy, "":
		res.Strategy = models.StrategyGreedy
		res.Schedule, err = schedule.Build(tasks, o.scheduleOpts()...)
	case models.StrategySimple:
		res.BatchSize = o.batchSize
		res.Schedule, err = schedule.Chunk(tasks, o.batchSize)
	case models.StrategyAI:
		err = planWithProposer(ctx, tasks, proposer, o, res)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	if err != nil {
		return nil, err
	}

	o.debugLog("[planner] %s strategy produced %d batch(es) for %d task(s)", res.Strategy, res.Schedule.Len(), len(tasks))
	return res, nil
}

func planWithProposer(ctx context.Context, tasks []models.Task, proposer Proposer, o *options, res *Result) error {
	if proposer == nil {
		return fallback(tasks, o, res, ErrNoProposer)
	}
	if len(tasks) == 0 {
		res.Schedule = &models.Schedule{}
		return nil
	}

	tasksYAML, err := plan.MarshalTasks(tasks)
	if err != nil {
		return fallback(tasks, o, res, err)
	}

	doc, err := proposer.Propose(ctx, string(tasksYAML))
	if err != nil {
		return fallback(tasks, o, res, err)
	}

	return reconcile(tasks, []byte(doc), o, res)
}

// FromDocument validates a plan document against tasks and uses it when it
// respects every dependency, falling back to the greedy schedule otherwise.
func FromDocument(tasks []models.Task, doc []byte, opts ...Option) (*Result, error) {
	o := &options{debugLog: func(format string, args ...interface{}) {}}
	for _, opt := range opts {
		opt(o)
	}
	res := &Result{Requested: models.StrategyAI, Strategy: models.StrategyAI}
	if err := reconcile(tasks, doc, o, res); err != nil {
		return nil, err
	}
	return res, nil
}

func reconcile(tasks []models.Task, doc []byte, o *options, res *Result) error {
	proposed, batches, err := plan.ParseExecutionPlan(doc)
	if err != nil {
		return fallback(tasks, o, res, fmt.Errorf("parse proposed plan: %w", err))
	}
	res.Proposed = proposed

	s, violations, err := schedule.Reconcile(tasks, batches, o.scheduleOpts()...)
	if err != nil {
		return err
	}
	res.Schedule = s
	res.Violations = violations
	if len(violations) > 0 {
		res.Strategy = models.StrategyGreedy
		res.Fallback = fmt.Errorf("proposed plan has %d violation(s)", len(violations))
		log.Printf("[planner] proposed plan rejected: %d violation(s), using greedy schedule", len(violations))
	}
	return nil
}

func fallback(tasks []models.Task, o *options, res *Result, cause error) error {
	log.Printf("[planner] %s strategy unavailable, using greedy schedule: %v", res.Requested, cause)
	o.warn(fmt.Sprintf("%s strategy failed (%v), using greedy schedule", res.Requested, cause), nil)

	s, err := schedule.Build(tasks, o.scheduleOpts()...)
	if err != nil {
		return err
	}
	res.Schedule = s
	res.Strategy = models.StrategyGreedy
	res.Fallback = cause
	return nil
}
