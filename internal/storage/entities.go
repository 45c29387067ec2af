package storage

import "time"

// Session is the persisted form of a work session. Checkpoint columns
// are nullable and written at most once.
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

type Task struct {
	ID          string
	SessionID   string
	Project     string
	Description string
	Timing      string
	Issue       string
	Status      string
	Images      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Reminder struct {
	ID        string
	SubjectID string
	Date      string
	RawTime   string
	FireAt    time.Time
	Message   string
	Status    string
	CreatedAt time.Time
}

type SessionListFilter struct {
	OwnerID string
	Date    string
	Limit   int
	Offset  int
}

type TaskListFilter struct {
	SessionID string
	Limit     int
	Offset    int
}

type ReminderListFilter struct {
	SubjectID string
	Status    string
	Limit     int
	Offset    int
}
