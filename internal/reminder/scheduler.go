// Package reminder persists one-shot reminders, re-arms them across
// restarts, and pushes due deliveries through a notification sink.
package reminder

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"worklogd/internal/fault"
	"worklogd/internal/model"
	"worklogd/internal/notify"
	"worklogd/internal/scheduler"
	"worklogd/internal/storage"
	"worklogd/internal/timeparse"
)

// Store is the slice of the repository the scheduler needs.
type Store interface {
	CreateReminder(ctx context.Context, in storage.Reminder) error
	GetReminder(ctx context.Context, id string) (storage.Reminder, error)
	ListReminders(ctx context.Context, filter storage.ReminderListFilter) ([]storage.Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
	MarkReminderDelivered(ctx context.Context, id string) error
	MarkReminderCanceled(ctx context.Context, id string) error
}

type Scheduler struct {
	store  Store
	engine *scheduler.Engine
	sink   notify.Sink
	loc    *time.Location
	logger *log.Logger
	now    func() time.Time
	newID  func() string

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

func New(store Store, sink notify.Sink, loc *time.Location, logger *log.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		store:  store,
		engine: scheduler.NewEngine(64),
		sink:   sink,
		loc:    loc,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Init starts the timer engine and re-arms every persisted reminder
// still in Scheduled. Reminders whose instant already passed fire
// immediately; the rest wait out fireAt - now. Makes delivery durable
// across process restarts.
func (s *Scheduler) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.engine.Start()
	s.wg.Add(1)
	go s.consume()

	pending, err := s.store.ListReminders(ctx, storage.ReminderListFilter{Status: string(model.ReminderScheduled)})
	if err != nil {
		return fault.Persistence("load pending reminders", err)
	}

	now := s.now()
	for _, rem := range pending {
		if !rem.FireAt.After(now) {
			s.deliver(ctx, rem.ID)
			continue
		}
		if err := s.engine.Schedule(scheduler.FireEvent{
			ReminderID: rem.ID,
			SubjectID:  rem.SubjectID,
			FireAt:     rem.FireAt,
		}); err != nil {
			return fault.Persistence("arm reminder", err)
		}
	}
	return nil
}

// Shutdown disarms every live timer and waits for in-flight deliveries.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.engine.Stop()
	s.wg.Wait()
}

// Schedule resolves date + rawTime, persists the reminder, and arms its
// delivery. An instant at or before now delivers synchronously: the
// returned reminder already reads Delivered.
func (s *Scheduler) Schedule(ctx context.Context, subjectID, date, rawTime, message string) (storage.Reminder, error) {
	if strings.TrimSpace(subjectID) == "" {
		return storage.Reminder{}, fault.Validation("subject id is required")
	}
	fireAt, err := timeparse.Resolve(date, rawTime, s.loc)
	if err != nil {
		return storage.Reminder{}, fault.Validation("resolve fire time: %v", err)
	}

	rem := storage.Reminder{
		ID:        s.newID(),
		SubjectID: subjectID,
		Date:      date,
		RawTime:   rawTime,
		FireAt:    fireAt,
		Message:   message,
		Status:    string(model.ReminderScheduled),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateReminder(ctx, rem); err != nil {
		return storage.Reminder{}, fault.Persistence("create reminder", err)
	}

	if !fireAt.After(s.now()) {
		s.deliver(ctx, rem.ID)
		return s.Get(ctx, rem.ID)
	}

	if err := s.engine.Schedule(scheduler.FireEvent{
		ReminderID: rem.ID,
		SubjectID:  rem.SubjectID,
		FireAt:     rem.FireAt,
	}); err != nil {
		return storage.Reminder{}, fault.Persistence("arm reminder", err)
	}
	return rem, nil
}

func (s *Scheduler) Get(ctx context.Context, id string) (storage.Reminder, error) {
	rem, err := s.store.GetReminder(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Reminder{}, fault.NotFound("reminder %q", id)
		}
		return storage.Reminder{}, fault.Persistence("load reminder", err)
	}
	return rem, nil
}

// ListPending returns undelivered, uncanceled reminders for a subject,
// soonest first.
func (s *Scheduler) ListPending(ctx context.Context, subjectID string) ([]storage.Reminder, error) {
	out, err := s.store.ListReminders(ctx, storage.ReminderListFilter{
		SubjectID: subjectID,
		Status:    string(model.ReminderScheduled),
	})
	if err != nil {
		return nil, fault.Persistence("list reminders", err)
	}
	return out, nil
}

// Cancel moves a Scheduled reminder to Canceled and disarms its timer,
// guaranteeing zero future deliveries. A reminder already terminal is a
// no-op: the race between cancel and delivery settles on whichever
// wrote the status transition first.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	err := s.store.MarkReminderCanceled(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fault.NotFound("reminder %q", id)
	case errors.Is(err, storage.ErrConflict):
		// Lost to delivery (or a previous cancel); terminal either way.
		return nil
	case err != nil:
		return fault.Persistence("cancel reminder", err)
	}
	s.engine.Cancel(id)
	return nil
}

// Delete removes the reminder row outright, disarming it first.
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	s.engine.Cancel(id)
	err := s.store.DeleteReminder(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fault.NotFound("reminder %q", id)
	case err != nil:
		return fault.Persistence("delete reminder", err)
	}
	return nil
}

func (s *Scheduler) consume() {
	defer s.wg.Done()
	for ev := range s.engine.C() {
		s.deliver(context.Background(), ev.ReminderID)
	}
}

// deliver performs the at-most-once transition. The status CAS decides
// the winner before the sink is touched; a loser backs off silently.
// Sink failure after a won CAS is logged and terminal so a stale alert
// is never re-armed.
func (s *Scheduler) deliver(ctx context.Context, id string) {
	rem, err := s.store.GetReminder(ctx, id)
	if err != nil {
		s.logger.Printf("reminder %s: load before delivery: %v", id, err)
		return
	}

	err = s.store.MarkReminderDelivered(ctx, id)
	switch {
	case errors.Is(err, storage.ErrConflict):
		return
	case err != nil:
		s.logger.Printf("reminder %s: mark delivered: %v", id, err)
		return
	}

	payload := notify.Notification{
		Title:    "Reminder",
		Subtitle: rem.SubjectID,
		Message:  rem.Message,
		Urgency:  notify.UrgencyNormal,
	}
	if err := s.sink.Notify(ctx, payload); err != nil {
		s.logger.Printf("reminder %s: sink delivery failed: %v", id, err)
	}
}
