package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"worklogd/internal/httpapi"
	"worklogd/internal/model"
	"worklogd/internal/notify"
	"worklogd/internal/reminder"
	"worklogd/internal/sessionclock"
	"worklogd/internal/storage"
	"worklogd/internal/tasklog"
)

type fixture struct {
	handler http.Handler
	buffer  *tasklog.AutoSaveBuffer
}

func setupServer(t *testing.T) *fixture {
	t.Helper()

	repo, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Serialize writers; file-backed sqlite returns SQLITE_BUSY under
	// concurrent connections otherwise.
	repo.DB().SetMaxOpenConns(1)
	if err := storage.MigrateUp(repo.DB()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.New(io.Discard, "", 0)
	clock := sessionclock.New(repo)
	taskLog := tasklog.New(repo)
	buffer := tasklog.NewAutoSaveBuffer(taskLog, tasklog.AutoSaveConfig{Window: 20 * time.Millisecond}, logger)

	sched := reminder.New(repo, notify.NewLogSink(logger), time.UTC, logger)
	if err := sched.Init(context.Background()); err != nil {
		t.Fatalf("scheduler init: %v", err)
	}
	t.Cleanup(sched.Shutdown)

	srv := httpapi.NewServer(clock, taskLog, buffer, sched, logger)
	return &fixture{handler: srv.Router(), buffer: buffer}
}

func (f *fixture) do(t *testing.T, method, path string, body any, owner string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req.Header.Set(httpapi.OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

type sessionResp struct {
	ID          string                `json:"id"`
	OwnerID     string                `json:"ownerId"`
	Date        string                `json:"date"`
	Checkpoints map[string]*time.Time `json:"checkpoints"`
}

type taskResp struct {
	ID        string   `json:"id"`
	SessionID string   `json:"sessionId"`
	Project   string   `json:"project"`
	Status    string   `json:"status"`
	Images    []string `json:"images"`
}

type reminderResp struct {
	ID     string    `json:"id"`
	FireAt time.Time `json:"fireAt"`
	Status string    `json:"status"`
}

func openSession(t *testing.T, f *fixture, owner, date string) sessionResp {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/sessions", map[string]string{"date": date}, owner)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open session: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decode[sessionResp](t, rec)
}

func addTask(t *testing.T, f *fixture, sessionID string) taskResp {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/sessions/"+sessionID+"/tasks", nil, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("add task: status %d, body %s", rec.Code, rec.Body.String())
	}
	return decode[taskResp](t, rec)
}

func TestOpenSessionRequiresOwner(t *testing.T) {
	f := setupServer(t)
	rec := f.do(t, http.MethodPost, "/sessions", map[string]string{"date": "2026-03-02"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestOpenSessionIdempotentPerOwnerDate(t *testing.T) {
	f := setupServer(t)

	first := openSession(t, f, "owner-1", "2026-03-02")
	second := openSession(t, f, "owner-1", "2026-03-02")
	if first.ID != second.ID {
		t.Fatalf("same owner/date produced two sessions: %s vs %s", first.ID, second.ID)
	}

	other := openSession(t, f, "owner-2", "2026-03-02")
	if other.ID == first.ID {
		t.Fatal("different owner reused the session")
	}
}

func TestRecordCheckpointConflictMapsTo409(t *testing.T) {
	f := setupServer(t)
	session := openSession(t, f, "owner-1", "2026-03-02")

	rec := f.do(t, http.MethodPost, "/sessions/"+session.ID+"/checkpoints/timeIn", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("first checkpoint: status %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[sessionResp](t, rec)
	if got.Checkpoints["timeIn"] == nil {
		t.Fatal("timeIn not set after record")
	}

	rec = f.do(t, http.MethodPost, "/sessions/"+session.ID+"/checkpoints/timeIn", nil, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second checkpoint: status %d, want 409", rec.Code)
	}
}

func TestRecordCheckpointUnknownNameMapsTo400(t *testing.T) {
	f := setupServer(t)
	session := openSession(t, f, "owner-1", "2026-03-02")

	rec := f.do(t, http.MethodPost, "/sessions/"+session.ID+"/checkpoints/napTime", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetSessionMissingMapsTo404(t *testing.T) {
	f := setupServer(t)
	rec := f.do(t, http.MethodGet, "/sessions/ghost", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPatchTaskReturnsOptimisticView(t *testing.T) {
	f := setupServer(t)
	session := openSession(t, f, "owner-1", "2026-03-02")
	task := addTask(t, f, session.ID)

	rec := f.do(t, http.MethodPatch, "/tasks/"+task.ID,
		map[string]string{"field": string(model.FieldProject), "value": "migration"}, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("patch: status %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[taskResp](t, rec)
	if got.Project != "migration" {
		t.Fatalf("optimistic project = %q, want %q", got.Project, "migration")
	}

	// The same value turns durable once the debounce window closes.
	time.Sleep(60 * time.Millisecond)
	rec = f.do(t, http.MethodGet, "/tasks/"+task.ID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	if got := decode[taskResp](t, rec); got.Project != "migration" {
		t.Fatalf("durable project = %q", got.Project)
	}
}

func TestPatchTaskUnknownFieldMapsTo400(t *testing.T) {
	f := setupServer(t)
	session := openSession(t, f, "owner-1", "2026-03-02")
	task := addTask(t, f, session.ID)

	rec := f.do(t, http.MethodPatch, "/tasks/"+task.ID,
		map[string]string{"field": "mood", "value": "great"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBulkDeleteTasks(t *testing.T) {
	f := setupServer(t)
	session := openSession(t, f, "owner-1", "2026-03-02")
	a := addTask(t, f, session.ID)
	b := addTask(t, f, session.ID)
	keep := addTask(t, f, session.ID)

	rec := f.do(t, http.MethodPost, "/tasks/delete",
		map[string][]string{"ids": {a.ID, b.ID}}, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("bulk delete: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/sessions/"+session.ID+"/tasks", nil, "")
	tasks := decode[[]taskResp](t, rec)
	if len(tasks) != 1 || tasks[0].ID != keep.ID {
		t.Fatalf("remaining tasks = %+v, want only %s", tasks, keep.ID)
	}
}

func TestTaskImageRoutes(t *testing.T) {
	f := setupServer(t)
	session := openSession(t, f, "owner-1", "2026-03-02")
	task := addTask(t, f, session.ID)

	rec := f.do(t, http.MethodPost, "/tasks/"+task.ID+"/images",
		map[string]string{"ref": "shots/diagram.png"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("attach: status %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode[taskResp](t, rec); len(got.Images) != 1 {
		t.Fatalf("images = %v", got.Images)
	}

	rec = f.do(t, http.MethodDelete, "/tasks/"+task.ID+"/images?ref=shots%2Fdiagram.png", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: status %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode[taskResp](t, rec); len(got.Images) != 0 {
		t.Fatalf("images after remove = %v", got.Images)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	f := setupServer(t)
	session := openSession(t, f, "owner-1", "2026-03-02")
	task := addTask(t, f, session.ID)

	rec := f.do(t, http.MethodDelete, "/sessions/"+session.ID, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete session: status %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/tasks/"+task.ID, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("task survived cascade: status %d", rec.Code)
	}
}

func TestReminderLifecycle(t *testing.T) {
	f := setupServer(t)

	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format(model.DateLayout)
	rec := f.do(t, http.MethodPost, "/reminders", map[string]string{
		"subjectId": "client-7",
		"date":      tomorrow,
		"time":      "02:30 PM",
		"message":   "send invoice",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body.String())
	}
	created := decode[reminderResp](t, rec)
	if created.Status != string(model.ReminderScheduled) {
		t.Fatalf("status = %q", created.Status)
	}
	if created.FireAt.Hour() != 14 || created.FireAt.Minute() != 30 {
		t.Fatalf("fireAt = %v, want 14:30", created.FireAt)
	}

	rec = f.do(t, http.MethodGet, "/reminders?subject=client-7", nil, "")
	if pending := decode[[]reminderResp](t, rec); len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	rec = f.do(t, http.MethodPost, "/reminders/"+created.ID+"/cancel", nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cancel: status %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/reminders/"+created.ID, nil, "")
	if got := decode[reminderResp](t, rec); got.Status != string(model.ReminderCanceled) {
		t.Fatalf("status after cancel = %q", got.Status)
	}

	rec = f.do(t, http.MethodDelete, "/reminders/"+created.ID, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/reminders/"+created.ID, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d, want 404", rec.Code)
	}
}

func TestReminderBadTimeMapsTo400(t *testing.T) {
	f := setupServer(t)
	rec := f.do(t, http.MethodPost, "/reminders", map[string]string{
		"subjectId": "client-7",
		"date":      "2026-03-02",
		"time":      "2:30",
		"message":   "nope",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
