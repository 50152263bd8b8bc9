// Package scheduler turns incomplete tasks into concrete calendar events.
//
// A run is a full recompute: previously generated events for incomplete tasks
// are discarded, tasks are ordered by feasibility, priority and deadline, each
// task is split into chunks, and the chunks are greedily placed into free
// workday slots. Placement is two-phase: first the days up to and including
// the deadline (preferring slots that start before the deadline instant),
// then a bounded overflow window after it. Chunks that fit nowhere within the
// horizon are dropped.
//
// All timestamps are naive local wall-clock times; see pkg/naivetime.
package scheduler
