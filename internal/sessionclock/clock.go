// Package sessionclock owns the daily work-session aggregate: one
// session per owner per calendar date, eight write-once attendance
// checkpoint slots, and cascade ownership of the session's task log.
package sessionclock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"worklogd/internal/fault"
	"worklogd/internal/model"
	"worklogd/internal/storage"
)

// Store is the slice of the repository the session clock needs.
type Store interface {
	CreateSession(ctx context.Context, in storage.Session) error
	GetSession(ctx context.Context, id string) (storage.Session, error)
	GetSessionByOwnerDate(ctx context.Context, ownerID, date string) (storage.Session, error)
	ListSessions(ctx context.Context, filter storage.SessionListFilter) ([]storage.Session, error)
	DeleteSession(ctx context.Context, id string) error
	SetSessionCheckpoint(ctx context.Context, sessionID, checkpoint string, at time.Time) error
}

type SessionClock struct {
	store Store
	now   func() time.Time
	newID func() string
}

func New(store Store) *SessionClock {
	return &SessionClock{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// OpenSession returns the session for (ownerID, date), creating it when
// absent. Idempotent: a concurrent create losing the unique-index race
// falls back to the winner's row.
func (c *SessionClock) OpenSession(ctx context.Context, ownerID, date string) (storage.Session, error) {
	if strings.TrimSpace(ownerID) == "" {
		return storage.Session{}, fault.Validation("owner id is required")
	}
	if err := model.ValidateDate(date); err != nil {
		return storage.Session{}, fault.Validation("invalid date %q", date)
	}

	existing, err := c.store.GetSessionByOwnerDate(ctx, ownerID, date)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.Session{}, fault.Persistence("load session", err)
	}

	sess := storage.Session{
		ID:        c.newID(),
		OwnerID:   ownerID,
		Date:      date,
		CreatedAt: c.now().UTC(),
	}
	if err := c.store.CreateSession(ctx, sess); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			winner, getErr := c.store.GetSessionByOwnerDate(ctx, ownerID, date)
			if getErr != nil {
				return storage.Session{}, fault.Persistence("load session after create race", getErr)
			}
			return winner, nil
		}
		return storage.Session{}, fault.Persistence("create session", err)
	}
	return sess, nil
}

// RecordCheckpoint stamps the named slot with the current instant. The
// slot is write-once; a second call conflicts and leaves the stored
// value untouched. Chronology between slots is deliberately not
// enforced: recording timeOut before timeIn is allowed.
func (c *SessionClock) RecordCheckpoint(ctx context.Context, sessionID string, name model.Checkpoint) (storage.Session, error) {
	if !name.IsValid() {
		return storage.Session{}, fault.Validation("unknown checkpoint %q", name)
	}

	err := c.store.SetSessionCheckpoint(ctx, sessionID, string(name), c.now().UTC())
	switch {
	case errors.Is(err, storage.ErrConflict):
		return storage.Session{}, fault.Conflict("checkpoint %q already recorded", name)
	case errors.Is(err, storage.ErrNotFound):
		return storage.Session{}, fault.NotFound("session %q", sessionID)
	case err != nil:
		return storage.Session{}, fault.Persistence("record checkpoint", err)
	}

	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return storage.Session{}, fault.Persistence("load session", err)
	}
	return sess, nil
}

func (c *SessionClock) GetSession(ctx context.Context, sessionID string) (storage.Session, error) {
	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Session{}, fault.NotFound("session %q", sessionID)
		}
		return storage.Session{}, fault.Persistence("load session", err)
	}
	return sess, nil
}

func (c *SessionClock) ListSessions(ctx context.Context, ownerID, date string) ([]storage.Session, error) {
	if date != "" {
		if err := model.ValidateDate(date); err != nil {
			return nil, fault.Validation("invalid date %q", date)
		}
	}
	out, err := c.store.ListSessions(ctx, storage.SessionListFilter{OwnerID: ownerID, Date: date})
	if err != nil {
		return nil, fault.Persistence("list sessions", err)
	}
	return out, nil
}

// DeleteSession removes the session; its tasks go with it.
func (c *SessionClock) DeleteSession(ctx context.Context, sessionID string) error {
	err := c.store.DeleteSession(ctx, sessionID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fault.NotFound("session %q", sessionID)
	case err != nil:
		return fault.Persistence("delete session", err)
	}
	return nil
}
