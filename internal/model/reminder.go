package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidReminderStatus = errors.New("model: invalid reminder status")

// ReminderStatus is the one-way state machine of a reminder:
// Scheduled -> Delivered or Scheduled -> Canceled, both terminal.
type ReminderStatus string

const (
	ReminderScheduled ReminderStatus = "Scheduled"
	ReminderDelivered ReminderStatus = "Delivered"
	ReminderCanceled  ReminderStatus = "Canceled"
)

func (s ReminderStatus) IsValid() bool {
	switch s {
	case ReminderScheduled, ReminderDelivered, ReminderCanceled:
		return true
	default:
		return false
	}
}

func (s ReminderStatus) IsTerminal() bool {
	return s == ReminderDelivered || s == ReminderCanceled
}

// Reminder is a one-shot alert bound to an absolute instant. FireAt is
// resolved once from Date and RawTime at creation and never recomputed.
type Reminder struct {
	ID        string
	SubjectID string
	Date      string
	RawTime   string
	FireAt    time.Time
	Message   string
	Status    ReminderStatus
	CreatedAt time.Time
}

func (r Reminder) Delivered() bool {
	return r.Status == ReminderDelivered
}

func (r Reminder) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("model: reminder id is required")
	}
	if strings.TrimSpace(r.SubjectID) == "" {
		return errors.New("model: reminder subject_id is required")
	}
	if err := ValidateDate(r.Date); err != nil {
		return err
	}
	if r.FireAt.IsZero() {
		return errors.New("model: reminder fire_at is required")
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidReminderStatus, r.Status)
	}
	return nil
}
