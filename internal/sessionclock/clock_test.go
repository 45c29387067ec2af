package sessionclock

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"worklogd/internal/fault"
	"worklogd/internal/model"
	"worklogd/internal/storage"
)

func setupClock(t *testing.T) (*SessionClock, *storage.SQLiteRepository) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sessionclock-test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	// Serialize writers; file-backed sqlite returns SQLITE_BUSY under
	// concurrent connections otherwise.
	db.SetMaxOpenConns(1)
	if err := storage.MigrateUp(db); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	repo, err := storage.NewSQLiteRepository(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return New(repo), repo
}

func TestOpenSessionIsIdempotent(t *testing.T) {
	clock, _ := setupClock(t)
	ctx := context.Background()

	first, err := clock.OpenSession(ctx, "owner-1", "2024-05-01")
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	second, err := clock.OpenSession(ctx, "owner-1", "2024-05-01")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same session, got %q and %q", first.ID, second.ID)
	}

	other, err := clock.OpenSession(ctx, "owner-1", "2024-05-02")
	if err != nil {
		t.Fatalf("open other date: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("different dates must get different sessions")
	}
}

func TestOpenSessionValidatesInput(t *testing.T) {
	clock, _ := setupClock(t)
	ctx := context.Background()

	if _, err := clock.OpenSession(ctx, " ", "2024-05-01"); !fault.IsKind(err, fault.KindValidation) {
		t.Fatalf("expected validation error for blank owner, got: %v", err)
	}
	if _, err := clock.OpenSession(ctx, "owner-1", "05/01/2024"); !fault.IsKind(err, fault.KindValidation) {
		t.Fatalf("expected validation error for bad date, got: %v", err)
	}
}

func TestRecordCheckpointWriteOnce(t *testing.T) {
	clock, _ := setupClock(t)
	ctx := context.Background()

	sess, err := clock.OpenSession(ctx, "owner-1", "2024-05-01")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	updated, err := clock.RecordCheckpoint(ctx, sess.ID, model.CheckpointTimeIn)
	if err != nil {
		t.Fatalf("record timeIn: %v", err)
	}
	if updated.TimeIn == nil {
		t.Fatal("timeIn not set after record")
	}
	stamped := *updated.TimeIn

	if _, err := clock.RecordCheckpoint(ctx, sess.ID, model.CheckpointTimeIn); !fault.IsKind(err, fault.KindConflict) {
		t.Fatalf("expected conflict on repeat, got: %v", err)
	}

	after, err := clock.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if after.TimeIn == nil || !after.TimeIn.Equal(stamped) {
		t.Fatalf("stored value changed after conflict: %v", after.TimeIn)
	}
}

func TestRecordCheckpointUnknownName(t *testing.T) {
	clock, _ := setupClock(t)
	ctx := context.Background()
	sess, err := clock.OpenSession(ctx, "owner-1", "2024-05-01")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := clock.RecordCheckpoint(ctx, sess.ID, model.Checkpoint("nap")); !fault.IsKind(err, fault.KindValidation) {
		t.Fatalf("expected validation error, got: %v", err)
	}
}

func TestRecordCheckpointNoOrderingEnforced(t *testing.T) {
	clock, _ := setupClock(t)
	ctx := context.Background()
	sess, err := clock.OpenSession(ctx, "owner-1", "2024-05-01")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// timeOut before timeIn is allowed.
	if _, err := clock.RecordCheckpoint(ctx, sess.ID, model.CheckpointTimeOut); err != nil {
		t.Fatalf("record timeOut first: %v", err)
	}
	if _, err := clock.RecordCheckpoint(ctx, sess.ID, model.CheckpointTimeIn); err != nil {
		t.Fatalf("record timeIn after timeOut: %v", err)
	}
}

func TestRecordCheckpointConcurrentSingleWinner(t *testing.T) {
	clock, _ := setupClock(t)
	ctx := context.Background()
	sess, err := clock.OpenSession(ctx, "owner-1", "2024-05-01")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, errs[i] = clock.RecordCheckpoint(ctx, sess.ID, model.CheckpointLunchBreakIn)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case fault.IsKind(err, fault.KindConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	clock, repo := setupClock(t)
	ctx := context.Background()
	sess, err := clock.OpenSession(ctx, "owner-1", "2024-05-01")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	now := time.Now().UTC()
	if err := repo.CreateTask(ctx, storage.Task{ID: "task-1", SessionID: sess.ID, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := clock.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := repo.GetTask(ctx, "task-1"); err != storage.ErrNotFound {
		t.Fatalf("expected task cascade, got: %v", err)
	}
	if err := clock.DeleteSession(ctx, sess.ID); !fault.IsKind(err, fault.KindNotFound) {
		t.Fatalf("expected not found on double delete, got: %v", err)
	}
}
