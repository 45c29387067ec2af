package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownField = errors.New("model: unknown task field")

// TaskField names the fixed editable text fields of a task. Unknown
// names are rejected at the boundary; tasks carry no open field map.
type TaskField string

const (
	FieldProject     TaskField = "project"
	FieldDescription TaskField = "description"
	FieldTiming      TaskField = "timing"
	FieldIssue       TaskField = "issue"
	FieldStatus      TaskField = "status"
)

func TaskFields() []TaskField {
	return []TaskField{FieldProject, FieldDescription, FieldTiming, FieldIssue, FieldStatus}
}

func (f TaskField) IsValid() bool {
	switch f {
	case FieldProject, FieldDescription, FieldTiming, FieldIssue, FieldStatus:
		return true
	default:
		return false
	}
}

// Task is a freeform log entry attached to a session. Field edits
// arrive through the autosave buffer; images are opaque references,
// upload lives outside this service.
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

func (t Task) FieldValue(f TaskField) (string, error) {
	switch f {
	case FieldProject:
		return t.Project, nil
	case FieldDescription:
		return t.Description, nil
	case FieldTiming:
		return t.Timing, nil
	case FieldIssue:
		return t.Issue, nil
	case FieldStatus:
		return t.Status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
}

func (t *Task) SetField(f TaskField, value string) error {
	switch f {
	case FieldProject:
		t.Project = value
	case FieldDescription:
		t.Description = value
	case FieldTiming:
		t.Timing = value
	case FieldIssue:
		t.Issue = value
	case FieldStatus:
		t.Status = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return nil
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: task id is required")
	}
	if strings.TrimSpace(t.SessionID) == "" {
		return errors.New("model: task session_id is required")
	}
	if t.CreatedAt.IsZero() {
		return errors.New("model: task created_at is required")
	}
	return nil
}
