package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"timeblock/internal/storage"
	"timeblock/pkg/logx"
	"timeblock/pkg/naivetime"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	res, err := s.sched.Run(r.Context())
	if err != nil {
		s.log.Error("scheduling run failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "scheduling failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// taskPayload distinguishes absent fields from zero values so PUT can apply
// partial updates.
type taskPayload struct {
	Title               *string `json:"title"`
	Deadline            *string `json:"deadline"`
	TotalDuration       *int    `json:"total_duration"`
	Chunking            *bool   `json:"chunking"`
	ChunkingMaxDuration *int    `json:"chunking_max_duration"`
	ChunkingMinDuration *int    `json:"chunking_min_duration"`
	Priority            *int    `json:"priority"`
	Completed           *bool   `json:"completed"`
}

func (p *taskPayload) apply(t *storage.Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Deadline != nil {
		t.Deadline = *p.Deadline
	}
	if p.TotalDuration != nil {
		t.TotalDuration = *p.TotalDuration
	}
	if p.Chunking != nil {
		t.Chunking = *p.Chunking
	}
	if p.ChunkingMaxDuration != nil {
		t.ChunkingMaxDuration = *p.ChunkingMaxDuration
	}
	if p.ChunkingMinDuration != nil {
		t.ChunkingMinDuration = *p.ChunkingMinDuration
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}

func validateTask(t storage.Task) error {
	if t.Title == "" {
		return errors.New("title is required")
	}
	if t.Deadline == "" {
		return errors.New("deadline is required")
	}
	if t.TotalDuration <= 0 {
		return errors.New("total_duration must be positive")
	}
	if t.Priority < 1 || t.Priority > 5 {
		return errors.New("priority must be between 1 and 5")
	}
	if t.ChunkingMaxDuration < 0 || t.ChunkingMinDuration < 0 {
		return errors.New("chunk durations must not be negative")
	}
	if t.Chunking && t.ChunkingMaxDuration > 0 && t.ChunkingMinDuration > t.ChunkingMaxDuration {
		return errors.New("chunking_min_duration must not exceed chunking_max_duration")
	}
	return nil
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context())
	if err != nil {
		s.log.Error("list tasks failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority < tasks[j].Priority
		}
		return tasks[i].Deadline < tasks[j].Deadline
	})
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var p taskPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	task := storage.Task{ID: s.newID(), Priority: 3}
	p.apply(&task)
	if err := validateTask(task); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.PutTask(r.Context(), task); err != nil {
		s.log.Error("create task failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"task": task})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.log.Error("get task failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.log.Error("get task failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	var p taskPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.apply(&task)
	if err := validateTask(task); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.PutTask(r.Context(), task); err != nil {
		s.log.Error("update task failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

// Deleting a task also removes every event generated for it, remote copies
// included when sync is active.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := s.store.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.log.Error("delete task failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		s.log.Error("list events failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	removed := 0
	for _, ev := range events {
		if ev.TaskID != id {
			continue
		}
		s.deleteRemoteCopy(r, ev)
		if err := s.store.DeleteEvent(ctx, ev.ID); err != nil {
			s.log.Error("cascade delete failed", logx.Err(err), logx.String("event_id", ev.ID))
			writeError(w, http.StatusInternalServerError, "storage failure")
			return
		}
		removed++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "task deleted",
		"events_removed": removed,
	})
}

type eventPayload struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	Start          *string `json:"start"`
	End            *string `json:"end"`
	TaskID         *string `json:"task_id"`
	ExternalSyncID *string `json:"external_sync_id"`
}

func (p *eventPayload) apply(e *storage.Event) error {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Start != nil {
		t, err := naivetime.Parse(*p.Start)
		if err != nil {
			return fmt.Errorf("invalid start: %v", err)
		}
		e.Start = t
	}
	if p.End != nil {
		t, err := naivetime.Parse(*p.End)
		if err != nil {
			return fmt.Errorf("invalid end: %v", err)
		}
		e.End = t
	}
	if p.TaskID != nil {
		e.TaskID = *p.TaskID
	}
	if p.ExternalSyncID != nil {
		e.ExternalSyncID = *p.ExternalSyncID
	}
	return nil
}

func validateEvent(e storage.Event) error {
	if e.Title == "" {
		return errors.New("title is required")
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return errors.New("start and end are required")
	}
	if !e.End.After(e.Start) {
		return errors.New("end must be after start")
	}
	return nil
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context())
	if err != nil {
		s.log.Error("list events failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var p eventPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	event := storage.Event{ID: s.newID()}
	if err := p.apply(&event); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateEvent(event); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.PutEvent(r.Context(), event); err != nil {
		s.log.Error("create event failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"event": event})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.store.GetEvent(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		s.log.Error("get event failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": event})
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.store.GetEvent(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		s.log.Error("get event failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	var p eventPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := p.apply(&event); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateEvent(event); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.PutEvent(r.Context(), event); err != nil {
		s.log.Error("update event failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": event})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	event, err := s.store.GetEvent(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		s.log.Error("get event failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	s.deleteRemoteCopy(r, event)
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		s.log.Error("delete event failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "event deleted"})
}

// deleteRemoteCopy is best-effort: the local store stays authoritative even
// when the remote calendar is unreachable.
func (s *Server) deleteRemoteCopy(r *http.Request, ev storage.Event) {
	if !s.cal.Enabled() || ev.ExternalSyncID == "" {
		return
	}
	if err := s.cal.DeleteRemote(r.Context(), ev.ExternalSyncID); err != nil {
		s.log.Warn("remote event delete failed",
			logx.String("event_id", ev.ID),
			logx.Err(err))
	}
}
