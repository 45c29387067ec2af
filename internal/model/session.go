package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var (
	ErrUnknownCheckpoint = errors.New("model: unknown checkpoint")
	ErrInvalidDate       = errors.New("model: invalid date")
)

// Checkpoint names the write-once timestamp slots of a work session.
type Checkpoint string

const (
	CheckpointTimeIn          Checkpoint = "timeIn"
	CheckpointMorningBreakIn  Checkpoint = "morningBreakIn"
	CheckpointMorningBreakOut Checkpoint = "morningBreakOut"
	CheckpointLunchBreakIn    Checkpoint = "lunchBreakIn"
	CheckpointLunchBreakOut   Checkpoint = "lunchBreakOut"
	CheckpointEveningBreakIn  Checkpoint = "eveningBreakIn"
	CheckpointEveningBreakOut Checkpoint = "eveningBreakOut"
	CheckpointTimeOut         Checkpoint = "timeOut"
)

// Checkpoints returns every slot name in display order.
func Checkpoints() []Checkpoint {
	return []Checkpoint{
		CheckpointTimeIn,
		CheckpointMorningBreakIn,
		CheckpointMorningBreakOut,
		CheckpointLunchBreakIn,
		CheckpointLunchBreakOut,
		CheckpointEveningBreakIn,
		CheckpointEveningBreakOut,
		CheckpointTimeOut,
	}
}

func (c Checkpoint) IsValid() bool {
	switch c {
	case CheckpointTimeIn, CheckpointMorningBreakIn, CheckpointMorningBreakOut,
		CheckpointLunchBreakIn, CheckpointLunchBreakOut,
		CheckpointEveningBreakIn, CheckpointEveningBreakOut, CheckpointTimeOut:
		return true
	default:
		return false
	}
}

// Session is a per-owner, per-day container for attendance checkpoints
// and its task log. Each checkpoint slot holds at most one timestamp
// and is never overwritten once set.
type Session struct {
	ID              string
	OwnerID         string
	Date            string
	TimeIn          *time.Time
	MorningBreakIn  *time.Time
	MorningBreakOut *time.Time
	LunchBreakIn    *time.Time
	LunchBreakOut   *time.Time
	EveningBreakIn  *time.Time
	EveningBreakOut *time.Time
	TimeOut         *time.Time
	CreatedAt       time.Time
}

// CheckpointValue returns the recorded instant for the named slot,
// nil when the slot is still unset.
func (s Session) CheckpointValue(c Checkpoint) (*time.Time, error) {
	switch c {
	case CheckpointTimeIn:
		return s.TimeIn, nil
	case CheckpointMorningBreakIn:
		return s.MorningBreakIn, nil
	case CheckpointMorningBreakOut:
		return s.MorningBreakOut, nil
	case CheckpointLunchBreakIn:
		return s.LunchBreakIn, nil
	case CheckpointLunchBreakOut:
		return s.LunchBreakOut, nil
	case CheckpointEveningBreakIn:
		return s.EveningBreakIn, nil
	case CheckpointEveningBreakOut:
		return s.EveningBreakOut, nil
	case CheckpointTimeOut:
		return s.TimeOut, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCheckpoint, c)
	}
}

func (s Session) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("model: session id is required")
	}
	if strings.TrimSpace(s.OwnerID) == "" {
		return errors.New("model: session owner_id is required")
	}
	if err := ValidateDate(s.Date); err != nil {
		return err
	}
	if s.CreatedAt.IsZero() {
		return errors.New("model: session created_at is required")
	}
	return nil
}

// ValidateDate checks a calendar-day string against DateLayout.
func ValidateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}
