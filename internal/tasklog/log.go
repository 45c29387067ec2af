// Package tasklog holds the task entries of a session and the autosave
// buffer that coalesces field edits into durable writes.
package tasklog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"worklogd/internal/fault"
	"worklogd/internal/storage"
)

// Store is the slice of the repository the task log needs.
type Store interface {
	GetSession(ctx context.Context, id string) (storage.Session, error)
	CreateTask(ctx context.Context, in storage.Task) error
	GetTask(ctx context.Context, id string) (storage.Task, error)
	UpdateTaskField(ctx context.Context, taskID, field, value string, updatedAt time.Time) error
	UpdateTaskImages(ctx context.Context, taskID string, images []string, updatedAt time.Time) error
	DeleteTask(ctx context.Context, id string) error
	DeleteTasks(ctx context.Context, ids []string) error
	ListTasks(ctx context.Context, filter storage.TaskListFilter) ([]storage.Task, error)
}

type TaskLog struct {
	store Store
	now   func() time.Time
	newID func() string
}

func New(store Store) *TaskLog {
	return &TaskLog{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// AddTask appends an empty task row to the session. Synchronous, never
// debounced.
func (l *TaskLog) AddTask(ctx context.Context, sessionID string) (storage.Task, error) {
	if _, err := l.store.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Task{}, fault.NotFound("session %q", sessionID)
		}
		return storage.Task{}, fault.Persistence("load session", err)
	}

	now := l.now().UTC()
	task := storage.Task{
		ID:        l.newID(),
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.store.CreateTask(ctx, task); err != nil {
		return storage.Task{}, fault.Persistence("create task", err)
	}
	return task, nil
}

func (l *TaskLog) GetTask(ctx context.Context, taskID string) (storage.Task, error) {
	task, err := l.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Task{}, fault.NotFound("task %q", taskID)
		}
		return storage.Task{}, fault.Persistence("load task", err)
	}
	return task, nil
}

func (l *TaskLog) ListTasks(ctx context.Context, sessionID string) ([]storage.Task, error) {
	out, err := l.store.ListTasks(ctx, storage.TaskListFilter{SessionID: sessionID})
	if err != nil {
		return nil, fault.Persistence("list tasks", err)
	}
	return out, nil
}

// AttachImage appends an opaque image reference. Upload itself lives
// outside this service.
func (l *TaskLog) AttachImage(ctx context.Context, taskID, ref string) (storage.Task, error) {
	task, err := l.GetTask(ctx, taskID)
	if err != nil {
		return storage.Task{}, err
	}
	images := append(append([]string(nil), task.Images...), ref)
	now := l.now().UTC()
	if err := l.store.UpdateTaskImages(ctx, taskID, images, now); err != nil {
		return storage.Task{}, fault.Persistence("update images", err)
	}
	task.Images = images
	task.UpdatedAt = now
	return task, nil
}

func (l *TaskLog) RemoveImage(ctx context.Context, taskID, ref string) (storage.Task, error) {
	task, err := l.GetTask(ctx, taskID)
	if err != nil {
		return storage.Task{}, err
	}
	images := make([]string, 0, len(task.Images))
	for _, img := range task.Images {
		if img != ref {
			images = append(images, img)
		}
	}
	now := l.now().UTC()
	if err := l.store.UpdateTaskImages(ctx, taskID, images, now); err != nil {
		return storage.Task{}, fault.Persistence("update images", err)
	}
	task.Images = images
	task.UpdatedAt = now
	return task, nil
}

func (l *TaskLog) removeTask(ctx context.Context, taskID string) error {
	err := l.store.DeleteTask(ctx, taskID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fault.NotFound("task %q", taskID)
	case err != nil:
		return fault.Persistence("delete task", err)
	}
	return nil
}

func (l *TaskLog) removeTasks(ctx context.Context, taskIDs []string) error {
	if err := l.store.DeleteTasks(ctx, taskIDs); err != nil {
		return fault.Persistence("delete tasks", err)
	}
	return nil
}
