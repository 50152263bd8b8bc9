// Package storage persists tasks and calendar events behind a small driver
// abstraction. Three drivers are available: memory (default), file (JSON
// snapshot) and sqlite.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"timeblock/internal/config"
	"timeblock/pkg/logx"
)

// TaskStore is the task half of a Store.
type TaskStore interface {
	ListTasks(ctx context.Context) ([]Task, error)
	GetTask(ctx context.Context, id string) (Task, error)
	PutTask(ctx context.Context, t Task) error
	DeleteTask(ctx context.Context, id string) error
}

// EventStore is the event half of a Store.
type EventStore interface {
	ListEvents(ctx context.Context) ([]Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	PutEvent(ctx context.Context, e Event) error
	DeleteEvent(ctx context.Context, id string) error
}

// Store combines both halves with lifecycle management.
type Store interface {
	TaskStore
	EventStore
	Close() error
}

// Open selects a driver from cfg. A nil or empty config yields the in-memory
// store, which is also the fallback other components rely on in tests.
func Open(cfg *config.StorageConfig, log logx.Logger) (Store, error) {
	driver := ""
	if cfg != nil {
		driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	}
	switch driver {
	case "", "none", "memory":
		log.Debug("storage driver selected", logx.String("driver", "memory"))
		return NewMemory(), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("storage: file driver requires path")
		}
		log.Debug("storage driver selected", logx.String("driver", "file"), logx.String("path", cfg.Path))
		return OpenFile(cfg.Path, log)
	case "sqlite", "sqlite3":
		if cfg.Path == "" {
			return nil, fmt.Errorf("storage: sqlite driver requires path")
		}
		busy := 5 * time.Second
		if cfg.BusyTimeout != "" {
			d, err := config.ParseDurationField("storage.busy_timeout", cfg.BusyTimeout)
			if err != nil {
				return nil, fmt.Errorf("storage: busy_timeout: %w", err)
			}
			busy = d
		}
		log.Debug("storage driver selected", logx.String("driver", "sqlite"), logx.String("path", cfg.Path))
		return OpenSQLite(cfg.Path, busy, log)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
