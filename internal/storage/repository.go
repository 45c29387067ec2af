package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("storage: not found")

	// ErrConflict reports a lost compare-and-set: the checkpoint slot
	// was already written, or the reminder already left Scheduled.
	ErrConflict = errors.New("storage: conflict")
)

type Repository interface {
	CreateSession(ctx context.Context, in Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	GetSessionByOwnerDate(ctx context.Context, ownerID, date string) (Session, error)
	ListSessions(ctx context.Context, filter SessionListFilter) ([]Session, error)
	DeleteSession(ctx context.Context, id string) error

	// SetSessionCheckpoint writes the named slot once. It returns
	// ErrConflict when the slot already holds a value, leaving it
	// unchanged, so two concurrent writers resolve to one winner.
	SetSessionCheckpoint(ctx context.Context, sessionID, checkpoint string, at time.Time) error

	CreateTask(ctx context.Context, in Task) error
	GetTask(ctx context.Context, id string) (Task, error)
	UpdateTaskField(ctx context.Context, taskID, field, value string, updatedAt time.Time) error
	UpdateTaskImages(ctx context.Context, taskID string, images []string, updatedAt time.Time) error
	DeleteTask(ctx context.Context, id string) error
	DeleteTasks(ctx context.Context, ids []string) error
	ListTasks(ctx context.Context, filter TaskListFilter) ([]Task, error)

	CreateReminder(ctx context.Context, in Reminder) error
	GetReminder(ctx context.Context, id string) (Reminder, error)
	ListReminders(ctx context.Context, filter ReminderListFilter) ([]Reminder, error)
	DeleteReminder(ctx context.Context, id string) error

	// MarkReminderDelivered and MarkReminderCanceled each succeed only
	// when the reminder is still Scheduled; a reminder that already
	// reached a terminal status returns ErrConflict.
	MarkReminderDelivered(ctx context.Context, id string) error
	MarkReminderCanceled(ctx context.Context, id string) error
}
