package tasklog

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"worklogd/internal/fault"
	"worklogd/internal/model"
	"worklogd/internal/storage"
)

const (
	// DefaultWindow matches the editor behavior the buffer fronts:
	// a field is considered settled 600ms after the last keystroke.
	DefaultWindow = 600 * time.Millisecond

	defaultMaxAttempts = 3
	defaultBackoff     = 250 * time.Millisecond
	flushTimeout       = 10 * time.Second
)

type AutoSaveConfig struct {
	Window      time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

func (c AutoSaveConfig) withDefaults() AutoSaveConfig {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
	return c
}

type saveKey struct {
	taskID string
	field  model.TaskField
}

type pendingEdit struct {
	value string
	seq   uint64
	timer *time.Timer
}

// SaveFailure is the asynchronous "not saved" signal: a debounced write
// that kept failing after its retry budget.
type SaveFailure struct {
	TaskID string
	Field  model.TaskField
	Value  string
	Err    error
}

// AutoSaveBuffer coalesces rapid per-field edits into single durable
// writes. Each (taskID, field) pair owns at most one armed timer; a new
// edit cancels and replaces the previous pending value, so only the
// last value inside a window reaches the store.
type AutoSaveBuffer struct {
	log      *TaskLog
	cfg      AutoSaveConfig
	logger   *log.Logger
	failures chan SaveFailure

	mu      sync.Mutex
	pending map[saveKey]*pendingEdit
	seq     uint64
	// latest holds the sequence of the newest edit issued per key. A
	// flush carrying an older sequence abandons its retries so a stale
	// value can never land after a newer durable write.
	latest map[saveKey]uint64
	writes sync.WaitGroup
}

func NewAutoSaveBuffer(taskLog *TaskLog, cfg AutoSaveConfig, logger *log.Logger) *AutoSaveBuffer {
	if logger == nil {
		logger = log.Default()
	}
	return &AutoSaveBuffer{
		log:      taskLog,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		failures: make(chan SaveFailure, 64),
		pending:  make(map[saveKey]*pendingEdit),
		latest:   make(map[saveKey]uint64),
	}
}

// Failures surfaces terminal save failures. The channel is buffered and
// never blocks the save path; an unread backlog drops new signals.
func (b *AutoSaveBuffer) Failures() <-chan SaveFailure {
	return b.failures
}

// UpdateField records the edit optimistically and (re)arms the debounce
// timer for the field. The durable write happens when the window
// elapses with no further edits; intermediate values are discarded.
func (b *AutoSaveBuffer) UpdateField(ctx context.Context, taskID string, field model.TaskField, value string) error {
	if !field.IsValid() {
		return fault.Validation("unknown task field %q", field)
	}
	if _, err := b.log.GetTask(ctx, taskID); err != nil {
		return err
	}

	key := saveKey{taskID: taskID, field: field}

	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.pending[key]; ok {
		prev.timer.Stop()
	}
	b.seq++
	edit := &pendingEdit{value: value, seq: b.seq}
	b.latest[key] = edit.seq
	edit.timer = time.AfterFunc(b.cfg.Window, func() {
		b.flushKey(key, edit)
	})
	b.pending[key] = edit
	return nil
}

// View returns the task as callers should observe it: the stored row
// with pending unflushed edits layered on top.
func (b *AutoSaveBuffer) View(ctx context.Context, taskID string) (model.Task, error) {
	stored, err := b.log.GetTask(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}
	task := model.Task{
		ID:          stored.ID,
		SessionID:   stored.SessionID,
		Project:     stored.Project,
		Description: stored.Description,
		Timing:      stored.Timing,
		Issue:       stored.Issue,
		Status:      stored.Status,
		Images:      stored.Images,
		CreatedAt:   stored.CreatedAt,
		UpdatedAt:   stored.UpdatedAt,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for key, edit := range b.pending {
		if key.taskID != taskID {
			continue
		}
		_ = task.SetField(key.field, edit.value)
	}
	return task, nil
}

// RemoveTask deletes immediately and drops any pending edits for the
// task; nothing debounced survives removal.
func (b *AutoSaveBuffer) RemoveTask(ctx context.Context, taskID string) error {
	b.dropPending(taskID)
	return b.log.removeTask(ctx, taskID)
}

func (b *AutoSaveBuffer) RemoveTasks(ctx context.Context, taskIDs []string) error {
	for _, id := range taskIDs {
		b.dropPending(id)
	}
	return b.log.removeTasks(ctx, taskIDs)
}

// Flush persists every pending edit synchronously. Shutdown path.
func (b *AutoSaveBuffer) Flush(ctx context.Context) {
	b.mu.Lock()
	edits := make(map[saveKey]*pendingEdit, len(b.pending))
	for key, edit := range b.pending {
		edit.timer.Stop()
		edits[key] = edit
	}
	b.pending = make(map[saveKey]*pendingEdit)
	b.mu.Unlock()

	for key, edit := range edits {
		b.persist(ctx, key, edit.value, edit.seq)
	}
	b.writes.Wait()
}

func (b *AutoSaveBuffer) dropPending(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, edit := range b.pending {
		if key.taskID == taskID {
			edit.timer.Stop()
			delete(b.pending, key)
		}
	}
	for key := range b.latest {
		if key.taskID == taskID {
			delete(b.latest, key)
		}
	}
}

// flushKey runs on the timer goroutine. A pointer comparison guards the
// race where a newer edit re-armed the key between fire and lock.
func (b *AutoSaveBuffer) flushKey(key saveKey, edit *pendingEdit) {
	b.mu.Lock()
	current, ok := b.pending[key]
	if !ok || current != edit {
		b.mu.Unlock()
		return
	}
	delete(b.pending, key)
	b.writes.Add(1)
	b.mu.Unlock()
	defer b.writes.Done()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	b.persist(ctx, key, edit.value, edit.seq)
}

// superseded reports whether a newer edit for the key has been issued
// since the flush carrying seq was cut.
func (b *AutoSaveBuffer) superseded(key saveKey, seq uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest[key] != seq
}

// persist writes one settled field value with a bounded retry budget.
// The caller of UpdateField already returned, so a terminal failure is
// reported through Failures instead of an error return. Each attempt
// first rechecks the key's sequence: once a newer edit exists, the
// newer flush owns the field and this one stops.
func (b *AutoSaveBuffer) persist(ctx context.Context, key saveKey, value string, seq uint64) {
	var lastErr error
	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		if b.superseded(key, seq) {
			return
		}
		lastErr = b.log.store.UpdateTaskField(ctx, key.taskID, string(key.field), value, b.log.now().UTC())
		if lastErr == nil {
			return
		}
		if errors.Is(lastErr, storage.ErrNotFound) {
			// Task deleted while the edit was in flight; nothing to save.
			return
		}
		if attempt < b.cfg.MaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * b.cfg.Backoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = b.cfg.MaxAttempts
			}
		}
	}

	b.logger.Printf("autosave: task %s field %s not saved: %v", key.taskID, key.field, lastErr)
	select {
	case b.failures <- SaveFailure{TaskID: key.taskID, Field: key.field, Value: value, Err: lastErr}:
	default:
	}
}
