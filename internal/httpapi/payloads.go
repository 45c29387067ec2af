package httpapi

import (
	"time"

	"worklogd/internal/model"
	"worklogd/internal/storage"
)

type sessionPayload struct {
	ID          string                `json:"id"`
	OwnerID     string                `json:"ownerId"`
	Date        string                `json:"date"`
	Checkpoints map[string]*time.Time `json:"checkpoints"`
	CreatedAt   time.Time             `json:"createdAt"`
}

func toSessionPayload(in storage.Session) sessionPayload {
	return sessionPayload{
		ID:      in.ID,
		OwnerID: in.OwnerID,
		Date:    in.Date,
		Checkpoints: map[string]*time.Time{
			string(model.CheckpointTimeIn):          in.TimeIn,
			string(model.CheckpointMorningBreakIn):  in.MorningBreakIn,
			string(model.CheckpointMorningBreakOut): in.MorningBreakOut,
			string(model.CheckpointLunchBreakIn):    in.LunchBreakIn,
			string(model.CheckpointLunchBreakOut):   in.LunchBreakOut,
			string(model.CheckpointEveningBreakIn):  in.EveningBreakIn,
			string(model.CheckpointEveningBreakOut): in.EveningBreakOut,
			string(model.CheckpointTimeOut):         in.TimeOut,
		},
		CreatedAt: in.CreatedAt,
	}
}

func toSessionPayloads(in []storage.Session) []sessionPayload {
	out := make([]sessionPayload, 0, len(in))
	for _, s := range in {
		out = append(out, toSessionPayload(s))
	}
	return out
}

type taskPayload struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Project     string    `json:"project"`
	Description string    `json:"description"`
	Timing      string    `json:"timing"`
	Issue       string    `json:"issue"`
	Status      string    `json:"status"`
	Images      []string  `json:"images"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toTaskPayload(in storage.Task) taskPayload {
	return taskPayload{
		ID:          in.ID,
		SessionID:   in.SessionID,
		Project:     in.Project,
		Description: in.Description,
		Timing:      in.Timing,
		Issue:       in.Issue,
		Status:      in.Status,
		Images:      in.Images,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.UpdatedAt,
	}
}

func modelTaskPayload(in model.Task) taskPayload {
	return taskPayload{
		ID:          in.ID,
		SessionID:   in.SessionID,
		Project:     in.Project,
		Description: in.Description,
		Timing:      in.Timing,
		Issue:       in.Issue,
		Status:      in.Status,
		Images:      in.Images,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.UpdatedAt,
	}
}

func toTaskPayloads(in []storage.Task) []taskPayload {
	out := make([]taskPayload, 0, len(in))
	for _, t := range in {
		out = append(out, toTaskPayload(t))
	}
	return out
}

type reminderPayload struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subjectId"`
	Date      string    `json:"date"`
	RawTime   string    `json:"time"`
	FireAt    time.Time `json:"fireAt"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func toReminderPayload(in storage.Reminder) reminderPayload {
	return reminderPayload{
		ID:        in.ID,
		SubjectID: in.SubjectID,
		Date:      in.Date,
		RawTime:   in.RawTime,
		FireAt:    in.FireAt,
		Message:   in.Message,
		Status:    in.Status,
		CreatedAt: in.CreatedAt,
	}
}

func toReminderPayloads(in []storage.Reminder) []reminderPayload {
	out := make([]reminderPayload, 0, len(in))
	for _, r := range in {
		out = append(out, toReminderPayload(r))
	}
	return out
}
