package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"timeblock/pkg/logx"
	"timeblock/pkg/naivetime"
)

//go:embed schema.sql
var schemaSQL string

// SQLite stores tasks and events in a single sqlite database file. Timestamps
// are persisted as naive local strings so they sort chronologically and round
// trip without zone drift.
type SQLite struct {
	db  *sql.DB
	log logx.Logger
}

// OpenSQLite opens (and creates, if needed) the database at path and applies
// the schema.
func OpenSQLite(path string, busyTimeout time.Duration, log logx.Logger) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(ON)")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids lock churn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{db: db, log: log}, nil
}

func (s *SQLite) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, title, deadline, total_duration, chunking,
       chunking_max_duration, chunking_min_duration, priority, completed
FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list tasks: %w", err)
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) GetTask(ctx context.Context, id string) (Task, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, title, deadline, total_duration, chunking,
       chunking_max_duration, chunking_min_duration, priority, completed
FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

func (s *SQLite) PutTask(ctx context.Context, t Task) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tasks (id, title, deadline, total_duration, chunking,
                   chunking_max_duration, chunking_min_duration, priority, completed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    title = excluded.title,
    deadline = excluded.deadline,
    total_duration = excluded.total_duration,
    chunking = excluded.chunking,
    chunking_max_duration = excluded.chunking_max_duration,
    chunking_min_duration = excluded.chunking_min_duration,
    priority = excluded.priority,
    completed = excluded.completed`,
		t.ID, t.Title, t.Deadline, t.TotalDuration, boolToInt(t.Chunking),
		t.ChunkingMaxDuration, t.ChunkingMinDuration, t.Priority, boolToInt(t.Completed))
	if err != nil {
		return fmt.Errorf("storage: put task: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete task: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLite) ListEvents(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, title, description, start_at, end_at, task_id, external_sync_id
FROM events ORDER BY start_at, id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list events: %w", err)
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) GetEvent(ctx context.Context, id string) (Event, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, title, description, start_at, end_at, task_id, external_sync_id
FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	return e, err
}

func (s *SQLite) PutEvent(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO events (id, title, description, start_at, end_at, task_id, external_sync_id)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    start_at = excluded.start_at,
    end_at = excluded.end_at,
    task_id = excluded.task_id,
    external_sync_id = excluded.external_sync_id`,
		e.ID, e.Title, e.Description, naivetime.Format(e.Start), naivetime.Format(e.End),
		e.TaskID, e.ExternalSyncID)
	if err != nil {
		return fmt.Errorf("storage: put event: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete event: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLite) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var t Task
	var chunking, completed int
	err := row.Scan(&t.ID, &t.Title, &t.Deadline, &t.TotalDuration, &chunking,
		&t.ChunkingMaxDuration, &t.ChunkingMinDuration, &t.Priority, &completed)
	if err != nil {
		return Task{}, err
	}
	t.Chunking = chunking != 0
	t.Completed = completed != 0
	return t, nil
}

func scanEvent(row rowScanner) (Event, error) {
	var e Event
	var start, end string
	err := row.Scan(&e.ID, &e.Title, &e.Description, &start, &end, &e.TaskID, &e.ExternalSyncID)
	if err != nil {
		return Event{}, err
	}
	if e.Start, err = naivetime.Parse(start); err != nil {
		return Event{}, fmt.Errorf("storage: event %s start: %w", e.ID, err)
	}
	if e.End, err = naivetime.Parse(end); err != nil {
		return Event{}, fmt.Errorf("storage: event %s end: %w", e.ID, err)
	}
	return e, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
