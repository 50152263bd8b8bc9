package scheduler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"timeblock/internal/storage"
	"timeblock/pkg/logx"
)

func newTestService(t *testing.T, now time.Time) (*Service, *storage.Memory) {
	t.Helper()
	store := storage.NewMemory()
	svc := New(Config{Window: Window{StartHour: 9, EndHour: 17}}, store, logx.Nop())
	svc.now = func() time.Time { return now }
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("gen-%d", seq)
	}
	return svc, store
}

func TestRunSingleTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(t, "2026-03-02", 8, 0)
	svc, store := newTestService(t, now)

	task := storage.Task{
		ID:            "t1",
		Title:         "write report",
		Deadline:      "2026-03-03T17:00:00",
		TotalDuration: 120,
		Priority:      2,
	}
	if err := store.PutTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusSuccess || res.TotalTasks != 1 || res.SuccessfullyScheduled != 1 {
		t.Fatalf("result: %+v", res)
	}
	if len(res.ScheduledEvents) != 1 {
		t.Fatalf("got %d events", len(res.ScheduledEvents))
	}
	ev := res.ScheduledEvents[0]
	if !ev.Start.Equal(at(t, "2026-03-02", 9, 0)) || !ev.End.Equal(at(t, "2026-03-02", 11, 0)) {
		t.Fatalf("placed %v..%v", ev.Start, ev.End)
	}
	if ev.Title != "write report" {
		t.Fatalf("title %q", ev.Title)
	}
	if ev.TaskID != "t1" {
		t.Fatalf("task link %q", ev.TaskID)
	}
	want := "Task: write report\nDeadline: 2026-03-03T17:00:00\nPriority: 2"
	if ev.Description != want {
		t.Fatalf("description %q", ev.Description)
	}

	stored, err := store.GetEvent(ctx, ev.ID)
	if err != nil || !stored.Start.Equal(ev.Start) {
		t.Fatalf("event not persisted: %v", err)
	}
}

func TestRunChunkedTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(t, "2026-03-02", 8, 0)
	svc, store := newTestService(t, now)

	task := storage.Task{
		ID:                  "t1",
		Title:               "study",
		Deadline:            "2026-03-03T17:00:00",
		TotalDuration:       180,
		Chunking:            true,
		ChunkingMaxDuration: 90,
		ChunkingMinDuration: 30,
		Priority:            3,
	}
	if err := store.PutTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.ScheduledEvents) != 2 {
		t.Fatalf("got %d events: %+v", len(res.ScheduledEvents), res.ScheduledEvents)
	}
	first, second := res.ScheduledEvents[0], res.ScheduledEvents[1]
	if first.Title != "study (1/2)" || second.Title != "study (2/2)" {
		t.Fatalf("titles %q, %q", first.Title, second.Title)
	}
	if !first.Start.Equal(at(t, "2026-03-02", 9, 0)) || !first.End.Equal(at(t, "2026-03-02", 10, 30)) {
		t.Fatalf("first chunk %v..%v", first.Start, first.End)
	}
	if !second.Start.Equal(at(t, "2026-03-02", 10, 30)) || !second.End.Equal(at(t, "2026-03-02", 12, 0)) {
		t.Fatalf("second chunk %v..%v", second.Start, second.End)
	}
	if !strings.Contains(first.Description, "Chunk 1 of 2") || !strings.Contains(second.Description, "Chunk 2 of 2") {
		t.Fatalf("descriptions %q, %q", first.Description, second.Description)
	}
}

func TestRunAvoidsBusyEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(t, "2026-03-02", 8, 0)
	svc, store := newTestService(t, now)

	busy := storage.Event{
		ID:    "meeting",
		Title: "standup",
		Start: at(t, "2026-03-02", 9, 0),
		End:   at(t, "2026-03-02", 10, 0),
	}
	if err := store.PutEvent(ctx, busy); err != nil {
		t.Fatal(err)
	}
	task := storage.Task{ID: "t1", Title: "deep work", Deadline: "2026-03-02T17:00:00", TotalDuration: 60, Priority: 3}
	if err := store.PutTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	ev := res.ScheduledEvents[0]
	if !ev.Start.Equal(at(t, "2026-03-02", 10, 0)) {
		t.Fatalf("placed at %v, want 10:00", ev.Start)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(t, "2026-03-02", 8, 0)
	svc, store := newTestService(t, now)

	tasks := []storage.Task{
		{ID: "a", Title: "a", Deadline: "2026-03-03T17:00:00", TotalDuration: 60, Priority: 2},
		{ID: "b", Title: "b", Deadline: "2026-03-03T17:00:00", TotalDuration: 90, Priority: 3,
			Chunking: true, ChunkingMaxDuration: 45},
	}
	for _, task := range tasks {
		if err := store.PutTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	first, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(first.ScheduledEvents) != len(second.ScheduledEvents) {
		t.Fatalf("event count drifted: %d then %d", len(first.ScheduledEvents), len(second.ScheduledEvents))
	}

	stored, err := store.ListEvents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != len(second.ScheduledEvents) {
		t.Fatalf("store holds %d events, want %d (stale events not cleared)", len(stored), len(second.ScheduledEvents))
	}
	for i := range stored {
		if !stored[i].Start.Equal(second.ScheduledEvents[i].Start) {
			t.Fatalf("placement drifted at %d: %v vs %v", i, stored[i].Start, second.ScheduledEvents[i].Start)
		}
	}
}

func TestRunOrderDeterminesPlacement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(t, "2026-03-02", 8, 0)
	svc, store := newTestService(t, now)

	for _, task := range []storage.Task{
		{ID: "low", Title: "low", Deadline: "2026-03-03T17:00:00", TotalDuration: 60, Priority: 4},
		{ID: "high", Title: "high", Deadline: "2026-03-03T17:00:00", TotalDuration: 60, Priority: 1},
	} {
		if err := store.PutTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	res, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	byTask := map[string]storage.Event{}
	for _, ev := range res.ScheduledEvents {
		byTask[ev.TaskID] = ev
	}
	if !byTask["high"].Start.Equal(at(t, "2026-03-02", 9, 0)) {
		t.Fatalf("high priority at %v", byTask["high"].Start)
	}
	if !byTask["low"].Start.Equal(at(t, "2026-03-02", 10, 0)) {
		t.Fatalf("low priority at %v", byTask["low"].Start)
	}
}

func TestRunKeepsCompletedTaskEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(t, "2026-03-02", 8, 0)
	svc, store := newTestService(t, now)

	if err := store.PutTask(ctx, storage.Task{
		ID: "done", Title: "done", Deadline: "2026-03-01T17:00:00", TotalDuration: 60, Priority: 3, Completed: true,
	}); err != nil {
		t.Fatal(err)
	}
	history := storage.Event{
		ID: "old", Title: "done", TaskID: "done",
		Start: at(t, "2026-03-02", 9, 0),
		End:   at(t, "2026-03-02", 10, 0),
	}
	if err := store.PutEvent(ctx, history); err != nil {
		t.Fatal(err)
	}
	if err := store.PutTask(ctx, storage.Task{
		ID: "new", Title: "new", Deadline: "2026-03-03T17:00:00", TotalDuration: 60, Priority: 3,
	}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := store.GetEvent(ctx, "old"); err != nil {
		t.Fatalf("completed task event was touched: %v", err)
	}
	// Completed history does not block: the new task still gets 09:00.
	if !res.ScheduledEvents[0].Start.Equal(at(t, "2026-03-02", 9, 0)) {
		t.Fatalf("new task at %v", res.ScheduledEvents[0].Start)
	}
}

func TestRunPartialOnBadDeadline(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(t, "2026-03-02", 8, 0)
	svc, store := newTestService(t, now)

	for _, task := range []storage.Task{
		{ID: "ok", Title: "ok", Deadline: "2026-03-03T17:00:00", TotalDuration: 60, Priority: 3},
		{ID: "bad", Title: "bad", Deadline: "someday", TotalDuration: 60, Priority: 3},
	} {
		if err := store.PutTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	res, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusPartial {
		t.Fatalf("status %q", res.Status)
	}
	if res.TotalTasks != 2 || res.SuccessfullyScheduled != 1 {
		t.Fatalf("counts: %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0].TaskID != "bad" || res.Errors[0].TaskTitle != "bad" {
		t.Fatalf("errors: %+v", res.Errors)
	}
	if len(res.ScheduledEvents) != 1 || res.ScheduledEvents[0].TaskID != "ok" {
		t.Fatalf("events: %+v", res.ScheduledEvents)
	}
}

func TestRunOverflowsPastDeadline(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(t, "2026-03-02", 8, 0)
	svc, store := newTestService(t, now)

	// The whole deadline day is blocked, so placement spills to the next day
	// even though the deadline has then passed.
	if err := store.PutEvent(ctx, storage.Event{
		ID: "blocked", Title: "offsite",
		Start: at(t, "2026-03-02", 9, 0),
		End:   at(t, "2026-03-02", 17, 0),
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.PutTask(ctx, storage.Task{
		ID: "t1", Title: "t1", Deadline: "2026-03-02T17:00:00", TotalDuration: 60, Priority: 3,
	}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.ScheduledEvents) != 1 {
		t.Fatalf("events: %+v", res.ScheduledEvents)
	}
	if !res.ScheduledEvents[0].Start.Equal(at(t, "2026-03-03", 9, 0)) {
		t.Fatalf("placed at %v, want next day 09:00", res.ScheduledEvents[0].Start)
	}
	if res.Status != StatusSuccess {
		t.Fatalf("status %q", res.Status)
	}
}

func TestRunOverdueTaskStartsTomorrow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(t, "2026-03-02", 8, 0)
	svc, store := newTestService(t, now)

	// The deadline is days in the past, so the deadline-bounded pass is
	// skipped and overflow placement begins the day after today, not today.
	if err := store.PutTask(ctx, storage.Task{
		ID: "t1", Title: "late report", Deadline: "2026-02-27T17:00:00", TotalDuration: 60, Priority: 3,
	}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusSuccess || len(res.ScheduledEvents) != 1 {
		t.Fatalf("result: %+v", res)
	}
	ev := res.ScheduledEvents[0]
	if !ev.Start.Equal(at(t, "2026-03-03", 9, 0)) || !ev.End.Equal(at(t, "2026-03-03", 10, 0)) {
		t.Fatalf("placed %v..%v, want tomorrow 09:00..10:00", ev.Start, ev.End)
	}
}

func TestRunNoIncompleteTasks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store := newTestService(t, at(t, "2026-03-02", 8, 0))
	if err := store.PutTask(ctx, storage.Task{
		ID: "done", Title: "done", Deadline: "2026-03-01T17:00:00", TotalDuration: 60, Priority: 3, Completed: true,
	}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusSuccess || res.Message == "" || len(res.ScheduledEvents) != 0 {
		t.Fatalf("result: %+v", res)
	}
}

func TestRunDropsUnplaceableChunks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(t, "2026-03-02", 8, 0)
	svc, store := newTestService(t, now)
	svc.Apply(Config{Window: Window{StartHour: 9, EndHour: 10}, HorizonDays: 1})

	// One hour per day, three hours of work, a single overflow day: the last
	// chunk has nowhere to go and is dropped without failing the task.
	if err := store.PutTask(ctx, storage.Task{
		ID: "t1", Title: "t1", Deadline: "2026-03-02T10:00:00", TotalDuration: 180, Priority: 3,
		Chunking: true, ChunkingMaxDuration: 60, ChunkingMinDuration: 30,
	}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != StatusSuccess || len(res.Errors) != 0 {
		t.Fatalf("result: %+v", res)
	}
	if len(res.ScheduledEvents) != 2 {
		t.Fatalf("got %d events: %+v", len(res.ScheduledEvents), res.ScheduledEvents)
	}
}

func TestRunSerializesConcurrentCalls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := at(t, "2026-03-02", 8, 0)
	svc, store := newTestService(t, now)
	if err := store.PutTask(ctx, storage.Task{
		ID: "t1", Title: "t1", Deadline: "2026-03-03T17:00:00", TotalDuration: 60, Priority: 3,
	}); err != nil {
		t.Fatal(err)
	}

	const runs = 8
	done := make(chan error, runs)
	for i := 0; i < runs; i++ {
		go func() {
			_, err := svc.Run(ctx)
			done <- err
		}()
	}
	for i := 0; i < runs; i++ {
		if err := <-done; err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	stored, err := store.ListEvents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 {
		t.Fatalf("store holds %d events after concurrent runs, want 1", len(stored))
	}
}
