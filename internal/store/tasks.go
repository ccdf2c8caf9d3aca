package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type taskRow struct {
	ID            string  `db:"id"`
	DisplayName   string  `db:"display_name"`
	PlaylistName  string  `db:"playlist_name"`
	IsCompleted   bool    `db:"is_completed"`
	TimeSpent     int64   `db:"time_spent"`
	LastStartedAt *string `db:"last_started_at"`
	CompletedAt   *string `db:"completed_at"`
	IsFlowSession bool    `db:"is_flow_session"`
	CreatedAt     string  `db:"created_at"`
}

func (r taskRow) toTask() Task {
	return Task{
		ID:            r.ID,
		DisplayName:   r.DisplayName,
		PlaylistName:  r.PlaylistName,
		IsCompleted:   r.IsCompleted,
		TimeSpent:     r.TimeSpent,
		LastStartedAt: parseNullTime(r.LastStartedAt),
		CompletedAt:   parseNullTime(r.CompletedAt),
		IsFlowSession: r.IsFlowSession,
		CreatedAt:     parseTime(r.CreatedAt),
	}
}

const taskColumns = `id, display_name, playlist_name, is_completed, time_spent,
	last_started_at, completed_at, is_flow_session, created_at`

// CreateTask inserts t, generating its ID when empty.
func (s *Store) CreateTask(ctx context.Context, t Task) (*Task, error) {
	t.DisplayName = strings.TrimSpace(t.DisplayName)
	if t.DisplayName == "" {
		return nil, fmt.Errorf("task name must not be empty")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.DisplayName, t.PlaylistName, t.IsCompleted, t.TimeSpent,
		formatNullTime(t.LastStartedAt), formatNullTime(t.CompletedAt), t.IsFlowSession,
		formatTime(t.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetTask(ctx, t.ID)
}

func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	t := row.toTask()
	return &t, nil
}

// ListTasks returns tasks oldest first.
func (s *Store) ListTasks(ctx context.Context, includeCompleted bool) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if !includeCompleted {
		query += ` WHERE is_completed = 0`
	}
	query += ` ORDER BY created_at, id`

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	var tasks []Task
	for _, r := range rows {
		tasks = append(tasks, r.toTask())
	}
	return tasks, nil
}

// SaveTask persists every mutable field of t.
func (s *Store) SaveTask(ctx context.Context, t *Task) error {
	return saveTask(ctx, s.db, t)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveTask(ctx context.Context, db execer, t *Task) error {
	res, err := db.ExecContext(ctx,
		`UPDATE tasks SET display_name = ?, playlist_name = ?, is_completed = ?, time_spent = ?,
			last_started_at = ?, completed_at = ?, is_flow_session = ?
		 WHERE id = ?`,
		t.DisplayName, t.PlaylistName, t.IsCompleted, t.TimeSpent,
		formatNullTime(t.LastStartedAt), formatNullTime(t.CompletedAt), t.IsFlowSession,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update task %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	return nil
}

// TimerState reads the active-task pointer and paused flag.
func (s *Store) TimerState(ctx context.Context) (TimerState, error) {
	var st TimerState
	var rows []Setting
	err := s.db.SelectContext(ctx, &rows,
		`SELECT key, value FROM settings WHERE key IN (?, ?)`, keyActiveTaskID, keyTimerPaused)
	if err != nil {
		return st, fmt.Errorf("read timer state: %w", err)
	}
	for _, r := range rows {
		switch r.Key {
		case keyActiveTaskID:
			st.ActiveTaskID = r.Value
		case keyTimerPaused:
			st.Paused = r.Value == "1"
		}
	}
	return st, nil
}

// CommitTimer writes the timer state together with the given tasks in one
// transaction, so a fold and the pointer move can never be half applied.
func (s *Store) CommitTimer(ctx context.Context, st TimerState, tasks ...*Task) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin timer commit: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tasks {
		if err := saveTask(ctx, tx, t); err != nil {
			return err
		}
	}

	paused := "0"
	if st.Paused {
		paused = "1"
	}
	if err := setSetting(ctx, tx, keyActiveTaskID, st.ActiveTaskID); err != nil {
		return err
	}
	if err := setSetting(ctx, tx, keyTimerPaused, paused); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveTimerState moves the active-task pointer without touching any task.
func (s *Store) SaveTimerState(ctx context.Context, st TimerState) error {
	return s.CommitTimer(ctx, st)
}
