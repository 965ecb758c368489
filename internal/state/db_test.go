package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/taskbatch/pkg/models"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t), "")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if db.driver != DriverModernc {
		t.Errorf("driver = %q, want %q", db.driver, DriverModernc)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "c", "test.db")

	db, err := Open(path, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("parent directory not created: %v", err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(tempDBPath(t), "postgres"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	v, err := db.schemaVersion()
	if err != nil {
		t.Fatalf("schemaVersion failed: %v", err)
	}
	if v != 2 {
		t.Errorf("schema version = %d, want 2", v)
	}
}

func TestProjectDBPath(t *testing.T) {
	got := ProjectDBPath("/repo")
	want := filepath.Join("/repo", ".taskbatch", "state.db")
	if got != want {
		t.Errorf("ProjectDBPath() = %q, want %q", got, want)
	}
}

func TestOpenProject(t *testing.T) {
	root := t.TempDir()
	db, err := OpenProject(root, "")
	if err != nil {
		t.Fatalf("OpenProject failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(ProjectDBPath(root)); err != nil {
		t.Errorf("project database missing: %v", err)
	}
}

func TestCreateRun_AssignsDefaults(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r := &Run{Source: "tasks.yaml", Strategy: models.StrategyGreedy, BatchCount: 2, TaskCount: 3}
	if err := db.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if r.ID == "" {
		t.Error("expected generated run ID")
	}
	if r.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}

	got, err := db.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Source != "tasks.yaml" || got.Strategy != models.StrategyGreedy {
		t.Errorf("GetRun() = %+v", got)
	}
	if got.Status != models.RunStatusRunning {
		t.Errorf("Status = %q, want %q", got.Status, models.RunStatusRunning)
	}
	if got.BatchCount != 2 || got.TaskCount != 3 {
		t.Errorf("counts = %d/%d, want 2/3", got.BatchCount, got.TaskCount)
	}
	if got.FinishedAt.Valid {
		t.Error("unfinished run should have null FinishedAt")
	}
	if got.Duration() != 0 {
		t.Errorf("Duration() = %v, want 0", got.Duration())
	}
}

func TestFinishRun(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &Run{ID: "run-1", StartedAt: start, Degraded: true}
	if err := db.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := db.FinishRun(ctx, "run-1", models.RunStatusFailed, start.Add(90*time.Second)); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != models.RunStatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if !got.Degraded {
		t.Error("Degraded flag lost")
	}
	if got.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v, want 1m30s", got.Duration())
	}
}

func TestFinishRun_Errors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.FinishRun(ctx, "missing", models.RunStatusDone, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("FinishRun(missing) error = %v, want ErrNotFound", err)
	}
	if err := db.FinishRun(ctx, "missing", models.RunStatusRunning, time.Now()); err == nil {
		t.Error("FinishRun(running) should fail")
	}
	if err := db.FinishRun(ctx, "missing", models.RunStatus("bogus"), time.Now()); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.GetRun(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun error = %v, want ErrNotFound", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := db.CreateRun(ctx, &Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("CreateRun(%s) failed: %v", id, err)
		}
	}

	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	if runs[0].ID != "c" || runs[2].ID != "a" {
		t.Errorf("order = %s,%s,%s, want c,b,a", runs[0].ID, runs[1].ID, runs[2].ID)
	}

	limited, err := db.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns(2) failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(limited) = %d, want 2", len(limited))
	}
}

func TestRecordResult_Upserts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.CreateRun(ctx, &Run{ID: "run"}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	now := time.Now()
	results := []models.TaskResult{
		{TaskID: "B", Batch: 1, Status: models.RunStatusFailed, Error: "exit 1", StartedAt: now, FinishedAt: now},
		{TaskID: "A", Batch: 0, Status: models.RunStatusDone, Output: "ok", StartedAt: now, FinishedAt: now},
	}
	for _, r := range results {
		if err := db.RecordResult(ctx, "run", r); err != nil {
			t.Fatalf("RecordResult(%s) failed: %v", r.TaskID, err)
		}
	}

	// A retried task replaces its earlier result.
	retry := results[0]
	retry.Status = models.RunStatusDone
	retry.Error = ""
	if err := db.RecordResult(ctx, "run", retry); err != nil {
		t.Fatalf("RecordResult(retry) failed: %v", err)
	}

	got, err := db.ListResults(ctx, "run")
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(got))
	}
	if got[0].TaskID != "A" || got[1].TaskID != "B" {
		t.Errorf("order = %s,%s, want A,B", got[0].TaskID, got[1].TaskID)
	}
	if got[0].Output != "ok" {
		t.Errorf("A output = %q, want ok", got[0].Output)
	}
	if got[1].Status != models.RunStatusDone || got[1].Error != "" {
		t.Errorf("B = %+v, want upserted done result", got[1])
	}
}

func TestRecordResult_UnknownRun(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	err := db.RecordResult(context.Background(), "ghost", models.TaskResult{
		TaskID: "A", Status: models.RunStatusDone, StartedAt: now, FinishedAt: now,
	})
	if err == nil {
		t.Error("expected foreign key error for unknown run")
	}
}

func TestDeleteRun_CascadesResults(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.CreateRun(ctx, &Run{ID: "run"}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	now := time.Now()
	if err := db.RecordResult(ctx, "run", models.TaskResult{TaskID: "A", Status: models.RunStatusDone, StartedAt: now, FinishedAt: now}); err != nil {
		t.Fatalf("RecordResult failed: %v", err)
	}

	if err := db.DeleteRun(ctx, "run"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	got, err := db.ListResults(ctx, "run")
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(results) = %d, want 0 after delete", len(got))
	}
	if err := db.DeleteRun(ctx, "run"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteRun error = %v, want ErrNotFound", err)
	}
}
