// Package httpapi exposes the work-session, task, and reminder services
// over a chi-routed JSON API.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"worklogd/internal/fault"
	"worklogd/internal/reminder"
	"worklogd/internal/sessionclock"
	"worklogd/internal/tasklog"
)

// OwnerHeader carries the caller identity. Authentication happens
// upstream; the header value is trusted as-is.
const OwnerHeader = "X-Owner-ID"

type Server struct {
	clock     *sessionclock.SessionClock
	tasks     *tasklog.TaskLog
	buffer    *tasklog.AutoSaveBuffer
	reminders *reminder.Scheduler
	logger    *log.Logger
}

func NewServer(clock *sessionclock.SessionClock, tasks *tasklog.TaskLog, buffer *tasklog.AutoSaveBuffer, reminders *reminder.Scheduler, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		clock:     clock,
		tasks:     tasks,
		buffer:    buffer,
		reminders: reminders,
		logger:    logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/sessions", s.openSession)
	r.Get("/sessions", s.listSessions)
	r.Get("/sessions/{id}", s.getSession)
	r.Delete("/sessions/{id}", s.deleteSession)
	r.Post("/sessions/{id}/checkpoints/{name}", s.recordCheckpoint)
	r.Post("/sessions/{id}/tasks", s.addTask)
	r.Get("/sessions/{id}/tasks", s.listTasks)

	r.Get("/tasks/{id}", s.getTask)
	r.Patch("/tasks/{id}", s.patchTask)
	r.Delete("/tasks/{id}", s.deleteTask)
	r.Post("/tasks/delete", s.deleteTasks)
	r.Post("/tasks/{id}/images", s.attachImage)
	r.Delete("/tasks/{id}/images", s.removeImage)

	r.Post("/reminders", s.createReminder)
	r.Get("/reminders", s.listReminders)
	r.Get("/reminders/{id}", s.getReminder)
	r.Post("/reminders/{id}/cancel", s.cancelReminder)
	r.Delete("/reminders/{id}", s.deleteReminder)

	return r
}

func (s *Server) respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// respondFault translates the error taxonomy onto HTTP status codes.
func respondFault(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if kind, ok := fault.KindOf(err); ok {
		switch kind {
		case fault.KindValidation:
			status = http.StatusBadRequest
		case fault.KindConflict:
			status = http.StatusConflict
		case fault.KindNotFound:
			status = http.StatusNotFound
		}
	}
	respondError(w, err.Error(), status)
}

func ownerID(r *http.Request) string {
	return r.Header.Get(OwnerHeader)
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
