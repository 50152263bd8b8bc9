package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"timeblock/pkg/logx"
)

type fileSnapshot struct {
	Tasks  map[string]Task  `json:"tasks"`
	Events map[string]Event `json:"events"`
}

// File keeps the full data set in memory and rewrites a JSON snapshot after
// every mutation. Writes go through a temp file plus rename so a crash never
// leaves a torn snapshot behind.
type File struct {
	mu   sync.Mutex
	path string
	log  logx.Logger
	data fileSnapshot
}

// OpenFile loads the snapshot at path, creating parent directories as needed.
// A missing file is an empty store.
func OpenFile(path string, log logx.Logger) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	f := &File{
		path: path,
		log:  log,
		data: fileSnapshot{
			Tasks:  make(map[string]Task),
			Events: make(map[string]Event),
		},
	}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// first run
	case err != nil:
		return nil, fmt.Errorf("storage: read snapshot: %w", err)
	default:
		if err := json.Unmarshal(raw, &f.data); err != nil {
			return nil, fmt.Errorf("storage: decode snapshot %s: %w", path, err)
		}
		if f.data.Tasks == nil {
			f.data.Tasks = make(map[string]Task)
		}
		if f.data.Events == nil {
			f.data.Events = make(map[string]Event)
		}
	}
	return f, nil
}

func (f *File) flushLocked() error {
	raw, err := json.MarshalIndent(&f.data, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode snapshot: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("storage: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("storage: replace snapshot: %w", err)
	}
	return nil
}

func (f *File) ListTasks(ctx context.Context) ([]Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedTasks(f.data.Tasks), nil
}

func (f *File) GetTask(ctx context.Context, id string) (Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.data.Tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (f *File) PutTask(ctx context.Context, t Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data.Tasks[t.ID] = t
	return f.flushLocked()
}

func (f *File) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data.Tasks[id]; !ok {
		return ErrNotFound
	}
	delete(f.data.Tasks, id)
	return f.flushLocked()
}

func (f *File) ListEvents(ctx context.Context) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedEvents(f.data.Events), nil
}

func (f *File) GetEvent(ctx context.Context, id string) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.data.Events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return e, nil
}

func (f *File) PutEvent(ctx context.Context, e Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data.Events[e.ID] = e
	return f.flushLocked()
}

func (f *File) DeleteEvent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data.Events[id]; !ok {
		return ErrNotFound
	}
	delete(f.data.Events, id)
	return f.flushLocked()
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushLocked()
}
