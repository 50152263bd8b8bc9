package storage

import "sort"

// Listing order is deterministic across drivers: tasks by id, events by
// start time then id.

func sortedTasks(in map[string]Task) []Task {
	out := make([]Task, 0, len(in))
	for _, t := range in {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedEvents(in map[string]Event) []Event {
	out := make([]Event, 0, len(in))
	for _, e := range in {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
