package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"worklogd/internal/model"
)

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		respondError(w, "missing "+OwnerHeader+" header", http.StatusBadRequest)
		return
	}

	var req struct {
		Date string `json:"date"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.clock.OpenSession(r.Context(), owner, req.Date)
	if err != nil {
		respondFault(w, err)
		return
	}
	s.respondJSON(w, toSessionPayload(session), http.StatusCreated)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	if owner == "" {
		owner = r.URL.Query().Get("owner")
	}
	if owner == "" {
		respondError(w, "owner is required", http.StatusBadRequest)
		return
	}

	sessions, err := s.clock.ListSessions(r.Context(), owner, r.URL.Query().Get("date"))
	if err != nil {
		respondFault(w, err)
		return
	}
	s.respondJSON(w, toSessionPayloads(sessions), http.StatusOK)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.clock.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err)
		return
	}
	s.respondJSON(w, toSessionPayload(session), http.StatusOK)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.clock.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordCheckpoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := model.Checkpoint(chi.URLParam(r, "name"))

	session, err := s.clock.RecordCheckpoint(r.Context(), id, name)
	if err != nil {
		respondFault(w, err)
		return
	}
	s.respondJSON(w, toSessionPayload(session), http.StatusOK)
}

func (s *Server) addTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.tasks.AddTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err)
		return
	}
	s.respondJSON(w, toTaskPayload(task), http.StatusCreated)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListTasks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err)
		return
	}
	s.respondJSON(w, toTaskPayloads(tasks), http.StatusOK)
}

// getTask reads through the autosave buffer so edits still inside the
// debounce window are visible.
func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.buffer.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err)
		return
	}
	s.respondJSON(w, modelTaskPayload(task), http.StatusOK)
}

// patchTask accepts a single-field edit and hands it to the autosave
// buffer. The response is the optimistic view; durability follows once
// the debounce window closes.
func (s *Server) patchTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.buffer.UpdateField(r.Context(), id, model.TaskField(req.Field), req.Value); err != nil {
		respondFault(w, err)
		return
	}

	task, err := s.buffer.View(r.Context(), id)
	if err != nil {
		respondFault(w, err)
		return
	}
	s.respondJSON(w, modelTaskPayload(task), http.StatusAccepted)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.buffer.RemoveTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteTasks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		respondError(w, "ids is required", http.StatusBadRequest)
		return
	}

	if err := s.buffer.RemoveTasks(r.Context(), req.IDs); err != nil {
		respondFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) attachImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ref string `json:"ref"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	task, err := s.tasks.AttachImage(r.Context(), chi.URLParam(r, "id"), req.Ref)
	if err != nil {
		respondFault(w, err)
		return
	}
	s.respondJSON(w, toTaskPayload(task), http.StatusOK)
}

func (s *Server) removeImage(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		respondError(w, "ref is required", http.StatusBadRequest)
		return
	}

	task, err := s.tasks.RemoveImage(r.Context(), chi.URLParam(r, "id"), ref)
	if err != nil {
		respondFault(w, err)
		return
	}
	s.respondJSON(w, toTaskPayload(task), http.StatusOK)
}

func (s *Server) createReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SubjectID string `json:"subjectId"`
		Date      string `json:"date"`
		Time      string `json:"time"`
		Message   string `json:"message"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rem, err := s.reminders.Schedule(r.Context(), req.SubjectID, req.Date, req.Time, req.Message)
	if err != nil {
		respondFault(w, err)
		return
	}
	s.respondJSON(w, toReminderPayload(rem), http.StatusCreated)
}

func (s *Server) listReminders(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		respondError(w, "subject is required", http.StatusBadRequest)
		return
	}

	out, err := s.reminders.ListPending(r.Context(), subject)
	if err != nil {
		respondFault(w, err)
		return
	}
	s.respondJSON(w, toReminderPayloads(out), http.StatusOK)
}

func (s *Server) getReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := s.reminders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err)
		return
	}
	s.respondJSON(w, toReminderPayload(rem), http.StatusOK)
}

func (s *Server) cancelReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.reminders.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.reminders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondFault(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
