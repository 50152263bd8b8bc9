package scheduler

import (
	"sort"
	"time"

	"timeblock/internal/storage"
	"timeblock/pkg/naivetime"
)

// Ordering classes, most urgent first. Feasible tasks (enough time left
// before the deadline) always go before infeasible ones; among the infeasible,
// overdue high-priority work beats overdue low-priority work, and tasks whose
// deadline is still ahead come last.
const (
	classFeasible = iota
	classOverdueUrgent
	classOverdueRelaxed
	classUpcomingTight
)

type orderedTask struct {
	task     storage.Task
	class    int
	deadline time.Time
}

func classify(t storage.Task, now time.Time) orderedTask {
	deadline, err := naivetime.Parse(t.Deadline)
	if err != nil {
		// Unparseable deadlines sort last; the placement step reports the
		// actual error per task.
		return orderedTask{task: t, class: classUpcomingTight, deadline: now.AddDate(100, 0, 0)}
	}
	remaining := deadline.Sub(now)
	need := time.Duration(t.TotalDuration) * time.Minute
	switch {
	case remaining >= need:
		return orderedTask{task: t, class: classFeasible, deadline: deadline}
	case deadline.Before(now) && t.Priority <= 2:
		return orderedTask{task: t, class: classOverdueUrgent, deadline: deadline}
	case deadline.Before(now):
		return orderedTask{task: t, class: classOverdueRelaxed, deadline: deadline}
	default:
		return orderedTask{task: t, class: classUpcomingTight, deadline: deadline}
	}
}

// Order sorts tasks by (class, priority, deadline) ascending. The input slice
// is not modified.
func Order(tasks []storage.Task, now time.Time) []storage.Task {
	ordered := make([]orderedTask, 0, len(tasks))
	for _, t := range tasks {
		ordered = append(ordered, classify(t, now))
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.class != b.class {
			return a.class < b.class
		}
		if a.task.Priority != b.task.Priority {
			return a.task.Priority < b.task.Priority
		}
		return a.deadline.Before(b.deadline)
	})
	out := make([]storage.Task, len(ordered))
	for i, o := range ordered {
		out[i] = o.task
	}
	return out
}
