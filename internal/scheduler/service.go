package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"timeblock/internal/storage"
	"timeblock/pkg/logx"
)

const defaultHorizonDays = 30

func normalize(cfg Config) Config {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = defaultHorizonDays
	}
	if cfg.Window.StartHour == 0 && cfg.Window.EndHour == 0 {
		cfg.Window = Window{StartHour: 9, EndHour: 17}
	}
	return cfg
}

// Config tunes a scheduling Service.
type Config struct {
	Window Window
	// HorizonDays bounds the overflow phase; zero means the default of 30.
	HorizonDays int
}

// Service recomputes the schedule for all incomplete tasks. Runs are
// serialized: a second Run blocks until the first finishes.
type Service struct {
	mu    sync.Mutex
	cfg   Config
	store storage.Store
	log   logx.Logger

	// Injection points for tests.
	now   func() time.Time
	newID func() string
}

// New returns a Service over store.
func New(cfg Config, store storage.Store, log logx.Logger) *Service {
	return &Service{
		cfg:   normalize(cfg),
		store: store,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Apply swaps in a new configuration; the next Run picks it up.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = normalize(cfg)
	s.mu.Unlock()
}

// Run recomputes the schedule in full. Events previously generated for
// incomplete tasks are deleted first; user events and events of completed
// tasks are untouched. Per-task failures are collected in the result, only
// storage failures abort the run.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	started := time.Now()

	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: list tasks: %w", err)
	}
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: list events: %w", err)
	}

	incomplete := make([]storage.Task, 0, len(tasks))
	incompleteIDs := make(map[string]bool)
	for _, t := range tasks {
		if !t.Completed {
			incomplete = append(incomplete, t)
			incompleteIDs[t.ID] = true
		}
	}
	if len(incomplete) == 0 {
		return &RunResult{
			Status:          StatusSuccess,
			Message:         "no incomplete tasks to schedule",
			ScheduledEvents: []storage.Event{},
			Errors:          []TaskError{},
		}, nil
	}

	r := &run{
		svc:  s,
		now:  now,
		win:  s.cfg.Window,
		days: s.cfg.HorizonDays,
	}
	for _, e := range events {
		if e.TaskID == "" {
			// User-created busy time blocks placement.
			r.busy = append(r.busy, Interval{Start: e.Start, End: e.End})
			continue
		}
		if incompleteIDs[e.TaskID] {
			if err := s.store.DeleteEvent(ctx, e.ID); err != nil {
				return nil, fmt.Errorf("scheduler: clear event %s: %w", e.ID, err)
			}
		}
		// Events of completed tasks are kept as history but do not block.
	}

	ordered := Order(incomplete, now)
	scheduled := []storage.Event{}
	taskErrors := []TaskError{}
	for _, task := range ordered {
		placed, err := s.placeOne(ctx, r, task)
		if err != nil {
			s.log.Error("task scheduling failed",
				logx.Err(err),
				logx.String("task_id", task.ID),
				logx.String("task_title", task.Title))
			taskErrors = append(taskErrors, TaskError{
				TaskID:    task.ID,
				TaskTitle: task.Title,
				Error:     err.Error(),
			})
			continue
		}
		scheduled = append(scheduled, placed...)
	}

	status := StatusSuccess
	if len(taskErrors) > 0 {
		status = StatusPartial
	}
	s.log.Info("scheduling run finished",
		logx.String("status", status),
		logx.Int("tasks", len(incomplete)),
		logx.Int("events", len(scheduled)),
		logx.Int("errors", len(taskErrors)),
		logx.Duration("elapsed", time.Since(started)))
	return &RunResult{
		Status:                status,
		ScheduledEvents:       scheduled,
		Errors:                taskErrors,
		TotalTasks:            len(incomplete),
		SuccessfullyScheduled: len(incomplete) - len(taskErrors),
	}, nil
}

// placeOne isolates a single task so a panic in placement is reported as that
// task's error rather than killing the run.
func (s *Service) placeOne(ctx context.Context, r *run, task storage.Task) (events []storage.Event, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("panic while placing task",
				logx.Any("panic", rec),
				logx.String("task_id", task.ID),
				logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic while placing task: %v", rec)
		}
	}()
	return r.placeTask(ctx, task)
}
