package scheduler

import (
	"context"
	"fmt"
	"time"

	"timeblock/internal/storage"
	"timeblock/pkg/logx"
	"timeblock/pkg/naivetime"
)

// run carries the mutable state of one scheduling pass. busy accumulates
// every placed chunk so later tasks see earlier placements.
type run struct {
	svc  *Service
	now  time.Time
	win  Window
	days int
	busy []Interval
}

type pendingChunk struct {
	index   int // zero-based position within the task
	minutes int
}

// placeTask splits one task into chunks and places them, persisting an event
// per placed chunk. Chunks that fit nowhere within the overflow horizon are
// dropped with a warning.
func (r *run) placeTask(ctx context.Context, task storage.Task) ([]storage.Event, error) {
	deadline, err := naivetime.Parse(task.Deadline)
	if err != nil {
		return nil, fmt.Errorf("invalid deadline %q: %w", task.Deadline, err)
	}

	sizes := chunksFor(task)
	total := len(sizes)
	pending := make([]pendingChunk, 0, total)
	for i, m := range sizes {
		pending = append(pending, pendingChunk{index: i, minutes: m})
	}

	var placed []storage.Event

	// fillDay places as many pending chunks as fit on one day.
	fillDay := func(day time.Time, preferBefore time.Time) error {
		free := FreeSlots(day, r.busy, r.win, r.now)
		rest := pending[:0]
		for _, chunk := range pending {
			need := time.Duration(chunk.minutes) * time.Minute
			slot, ok := FindSlot(free, need, preferBefore)
			if !ok {
				rest = append(rest, chunk)
				continue
			}
			ev := r.materialize(task, chunk, total, slot)
			if err := r.svc.store.PutEvent(ctx, ev); err != nil {
				return fmt.Errorf("persist event: %w", err)
			}
			placed = append(placed, ev)
			r.busy = append(r.busy, Interval{Start: ev.Start, End: ev.End})
			free = RemoveInterval(free, Interval{Start: ev.Start, End: ev.End})
		}
		pending = rest
		return nil
	}

	today := naivetime.Date(r.now)
	deadlineDate := naivetime.Date(deadline)

	// Phase one: today through the deadline day, preferring slots that start
	// before the deadline instant.
	if !deadlineDate.Before(today) {
		for day := today; !day.After(deadlineDate) && len(pending) > 0; day = day.AddDate(0, 0, 1) {
			if err := fillDay(day, deadline); err != nil {
				return placed, err
			}
		}
	}

	// Phase two: overflow starting the day after the later of today and the
	// deadline day, bounded by the horizon.
	if len(pending) > 0 {
		start := deadlineDate
		if today.After(start) {
			start = today
		}
		start = start.AddDate(0, 0, 1)
		for i := 0; i < r.days && len(pending) > 0; i++ {
			if err := fillDay(start.AddDate(0, 0, i), time.Time{}); err != nil {
				return placed, err
			}
		}
	}

	for _, chunk := range pending {
		r.svc.log.Warn("chunk dropped, no free slot within horizon",
			logx.String("task_id", task.ID),
			logx.String("task_title", task.Title),
			logx.Int("chunk", chunk.index+1),
			logx.Int("minutes", chunk.minutes))
	}
	return placed, nil
}

func (r *run) materialize(task storage.Task, chunk pendingChunk, total int, slot Interval) storage.Event {
	title := task.Title
	description := fmt.Sprintf("Task: %s\nDeadline: %s\nPriority: %d", task.Title, task.Deadline, task.Priority)
	if total > 1 {
		title = fmt.Sprintf("%s (%d/%d)", task.Title, chunk.index+1, total)
		description += fmt.Sprintf("\nChunk %d of %d", chunk.index+1, total)
	}
	return storage.Event{
		ID:          r.svc.newID(),
		Title:       title,
		Description: description,
		Start:       slot.Start,
		End:         slot.End,
		TaskID:      task.ID,
	}
}
