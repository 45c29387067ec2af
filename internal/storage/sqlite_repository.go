package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteTimeLayout = time.RFC3339Nano

// checkpointColumns whitelists checkpoint names against their columns.
// Anything outside this map never reaches SQL.
var checkpointColumns = map[string]string{
	"timeIn":          "time_in",
	"morningBreakIn":  "morning_break_in",
	"morningBreakOut": "morning_break_out",
	"lunchBreakIn":    "lunch_break_in",
	"lunchBreakOut":   "lunch_break_out",
	"eveningBreakIn":  "evening_break_in",
	"eveningBreakOut": "evening_break_out",
	"timeOut":         "time_out",
}

var taskFieldColumns = map[string]string{
	"project":     "project",
	"description": "description",
	"timing":      "timing",
	"issue":       "issue",
	"status":      "status",
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

const sessionColumns = `id, owner_id, date, time_in, morning_break_in, morning_break_out,
	lunch_break_in, lunch_break_out, evening_break_in, evening_break_out, time_out, created_at`

func (r *SQLiteRepository) CreateSession(ctx context.Context, in Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.OwnerID, in.Date,
		nullTime(in.TimeIn), nullTime(in.MorningBreakIn), nullTime(in.MorningBreakOut),
		nullTime(in.LunchBreakIn), nullTime(in.LunchBreakOut),
		nullTime(in.EveningBreakIn), nullTime(in.EveningBreakOut), nullTime(in.TimeOut),
		mustTime(in.CreatedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return ErrConflict
	}
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return sess, nil
}

func (r *SQLiteRepository) GetSessionByOwnerDate(ctx context.Context, ownerID, date string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE owner_id = ? AND date = ?`, ownerID, date)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return sess, nil
}

func (r *SQLiteRepository) ListSessions(ctx context.Context, filter SessionListFilter) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Date != "" {
		clauses = append(clauses, "date = ?")
		args = append(args, filter.Date)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY date DESC, created_at DESC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Session, 0)
	for rows.Next() {
		sess, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

// SetSessionCheckpoint is the write-once compare-and-set: the UPDATE
// only matches while the column is still NULL, so the second writer
// affects zero rows and loses.
func (r *SQLiteRepository) SetSessionCheckpoint(ctx context.Context, sessionID, checkpoint string, at time.Time) error {
	column, ok := checkpointColumns[checkpoint]
	if !ok {
		return fmt.Errorf("storage: unknown checkpoint %q", checkpoint)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET `+column+` = ? WHERE id = ? AND `+column+` IS NULL`,
		mustTime(at), sessionID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return err
	}
	return ErrConflict
}

const taskColumns = `id, session_id, project, description, timing, issue, status, images, created_at, updated_at`

func (r *SQLiteRepository) CreateTask(ctx context.Context, in Task) error {
	images, err := encodeImages(in.Images)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.SessionID, in.Project, in.Description, in.Timing, in.Issue, in.Status,
		images, mustTime(in.CreatedAt), mustTime(in.UpdatedAt),
	)
	return err
}

func (r *SQLiteRepository) GetTask(ctx context.Context, id string) (Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return task, nil
}

func (r *SQLiteRepository) UpdateTaskField(ctx context.Context, taskID, field, value string, updatedAt time.Time) error {
	column, ok := taskFieldColumns[field]
	if !ok {
		return fmt.Errorf("storage: unknown task field %q", field)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, mustTime(updatedAt), taskID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) UpdateTaskImages(ctx context.Context, taskID string, images []string, updatedAt time.Time) error {
	encoded, err := encodeImages(images)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET images = ?, updated_at = ? WHERE id = ?`,
		encoded, mustTime(updatedAt), taskID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteTask(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteTasks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?, ", len(ids)-1) + "?"
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id IN (`+placeholders+`)`, args...)
	return err
}

func (r *SQLiteRepository) ListTasks(ctx context.Context, filter TaskListFilter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := make([]any, 0, 3)
	if filter.SessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, filter.SessionID)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Task, 0)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

const reminderColumns = `id, subject_id, date, raw_time, fire_at, message, status, created_at`

func (r *SQLiteRepository) CreateReminder(ctx context.Context, in Reminder) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.SubjectID, in.Date, in.RawTime, mustTime(in.FireAt), in.Message, in.Status, mustTime(in.CreatedAt),
	)
	return err
}

func (r *SQLiteRepository) GetReminder(ctx context.Context, id string) (Reminder, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	item, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reminder{}, ErrNotFound
		}
		return Reminder{}, err
	}
	return item, nil
}

func (r *SQLiteRepository) ListReminders(ctx context.Context, filter ReminderListFilter) ([]Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders`
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.SubjectID != "" {
		clauses = append(clauses, "subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY fire_at ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Reminder, 0)
	for rows.Next() {
		item, scanErr := scanReminder(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteReminder(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) MarkReminderDelivered(ctx context.Context, id string) error {
	return r.transitionReminder(ctx, id, "Delivered")
}

func (r *SQLiteRepository) MarkReminderCanceled(ctx context.Context, id string) error {
	return r.transitionReminder(ctx, id, "Canceled")
}

// transitionReminder moves a reminder out of Scheduled exactly once.
// Concurrent delivery and cancel race on this UPDATE; the loser sees
// zero affected rows and gets ErrConflict.
func (r *SQLiteRepository) transitionReminder(ctx context.Context, id, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET status = ? WHERE id = ? AND status = 'Scheduled'`,
		status, id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}
	if _, err := r.GetReminder(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(sqliteTimeLayout)
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	tm, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func encodeImages(images []string) (string, error) {
	if len(images) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("encode images: %w", err)
	}
	return string(raw), nil
}

func decodeImages(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode images: %w", err)
	}
	return out, nil
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	}
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(s scanner) (Session, error) {
	var out Session
	var slots [8]sql.NullString
	var created string
	if err := s.Scan(&out.ID, &out.OwnerID, &out.Date,
		&slots[0], &slots[1], &slots[2], &slots[3], &slots[4], &slots[5], &slots[6], &slots[7],
		&created); err != nil {
		return Session{}, err
	}
	targets := []**time.Time{
		&out.TimeIn, &out.MorningBreakIn, &out.MorningBreakOut,
		&out.LunchBreakIn, &out.LunchBreakOut,
		&out.EveningBreakIn, &out.EveningBreakOut, &out.TimeOut,
	}
	for i, slot := range slots {
		parsed, err := parseNullableTime(slot)
		if err != nil {
			return Session{}, err
		}
		*targets[i] = parsed
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return Session{}, err
	}
	out.CreatedAt = createdAt
	return out, nil
}

func scanTask(s scanner) (Task, error) {
	var out Task
	var images string
	var created, updated string
	if err := s.Scan(&out.ID, &out.SessionID, &out.Project, &out.Description, &out.Timing,
		&out.Issue, &out.Status, &images, &created, &updated); err != nil {
		return Task{}, err
	}
	decoded, err := decodeImages(images)
	if err != nil {
		return Task{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return Task{}, err
	}
	updatedAt, err := parseRequiredTime(updated)
	if err != nil {
		return Task{}, err
	}
	out.Images = decoded
	out.CreatedAt = createdAt
	out.UpdatedAt = updatedAt
	return out, nil
}

func scanReminder(s scanner) (Reminder, error) {
	var out Reminder
	var fire string
	var created string
	if err := s.Scan(&out.ID, &out.SubjectID, &out.Date, &out.RawTime, &fire, &out.Message, &out.Status, &created); err != nil {
		return Reminder{}, err
	}
	fireAt, err := parseRequiredTime(fire)
	if err != nil {
		return Reminder{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return Reminder{}, err
	}
	out.FireAt = fireAt
	out.CreatedAt = createdAt
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
