package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// RunStore handles run-level persistence operations.
type RunStore interface {
	CreateRun(ctx context.Context, r *Run) error
	FinishRun(ctx context.Context, id string, status models.RunStatus, finishedAt time.Time) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	DeleteRun(ctx context.Context, id string) error
}

// ResultStore handles per-task result persistence operations.
type ResultStore interface {
	RecordResult(ctx context.Context, runID string, result models.TaskResult) error
	ListResults(ctx context.Context, runID string) ([]models.TaskResult, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the interface for run history persistence.
type Store interface {
	io.Closer
	Migrator
	RunStore
	ResultStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store       = (*DB)(nil)
	_ Migrator    = (*DB)(nil)
	_ RunStore    = (*DB)(nil)
	_ ResultStore = (*DB)(nil)
)
