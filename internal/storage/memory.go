package storage

import (
	"context"
	"sync"
)

// Memory is the in-process store. All methods are safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	tasks  map[string]Task
	events map[string]Event
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tasks:  make(map[string]Task),
		events: make(map[string]Event),
	}
}

func (m *Memory) ListTasks(ctx context.Context) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedTasks(m.tasks), nil
}

func (m *Memory) GetTask(ctx context.Context, id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) PutTask(ctx context.Context, t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
	return nil
}

func (m *Memory) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *Memory) ListEvents(ctx context.Context) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedEvents(m.events), nil
}

func (m *Memory) GetEvent(ctx context.Context, id string) (Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return e, nil
}

func (m *Memory) PutEvent(ctx context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
	return nil
}

func (m *Memory) DeleteEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *Memory) Close() error { return nil }
