package scheduler

import (
	"sort"
	"time"

	"timeblock/pkg/naivetime"
)

// Interval is a half-open [Start, End) span of time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Window bounds the schedulable part of a day, [StartHour, EndHour) in whole
// hours.
type Window struct {
	StartHour int
	EndHour   int
}

// FreeSlots sweeps one calendar day and returns its free intervals, sorted by
// start. Only busy intervals that START on that day are considered, even if
// they run past midnight. When day is today the window is clamped so nothing
// in the past is offered.
func FreeSlots(day time.Time, busy []Interval, win Window, now time.Time) []Interval {
	date := naivetime.Date(day)
	// Window bounds are wall-clock hours, so DST transition days keep the
	// configured start and end times.
	y, m, d := day.Date()
	cursor := time.Date(y, m, d, win.StartHour, 0, 0, 0, day.Location())
	dayEnd := time.Date(y, m, d, win.EndHour, 0, 0, 0, day.Location())

	if naivetime.SameDate(day, now) && now.After(cursor) {
		cursor = now
	}
	if !cursor.Before(dayEnd) {
		return nil
	}

	todays := make([]Interval, 0, len(busy))
	for _, b := range busy {
		if naivetime.SameDate(b.Start, date) {
			todays = append(todays, b)
		}
	}
	sort.Slice(todays, func(i, j int) bool { return todays[i].Start.Before(todays[j].Start) })

	var free []Interval
	for _, b := range todays {
		if cursor.Before(b.Start) {
			end := b.Start
			if end.After(dayEnd) {
				end = dayEnd
			}
			if cursor.Before(end) {
				free = append(free, Interval{Start: cursor, End: end})
			}
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
		if !cursor.Before(dayEnd) {
			return free
		}
	}
	if cursor.Before(dayEnd) {
		free = append(free, Interval{Start: cursor, End: dayEnd})
	}
	return free
}

// FindSlot picks the earliest free interval long enough for need. When a
// deadline is set and at least one candidate starts before it, candidates
// starting at or after the deadline are ignored. The returned interval is
// trimmed to exactly need.
func FindSlot(free []Interval, need time.Duration, deadline time.Time) (Interval, bool) {
	var candidates []Interval
	for _, iv := range free {
		if iv.Duration() >= need {
			candidates = append(candidates, iv)
		}
	}
	if len(candidates) == 0 {
		return Interval{}, false
	}
	if !deadline.IsZero() {
		var before []Interval
		for _, iv := range candidates {
			if iv.Start.Before(deadline) {
				before = append(before, iv)
			}
		}
		if len(before) > 0 {
			candidates = before
		}
	}
	best := candidates[0]
	for _, iv := range candidates[1:] {
		if iv.Start.Before(best.Start) {
			best = iv
		}
	}
	return Interval{Start: best.Start, End: best.Start.Add(need)}, true
}

// RemoveInterval subtracts used from free, splitting any overlapped slot into
// the sub-slots before and after it.
func RemoveInterval(free []Interval, used Interval) []Interval {
	out := make([]Interval, 0, len(free)+1)
	for _, iv := range free {
		if !iv.End.After(used.Start) || !iv.Start.Before(used.End) {
			out = append(out, iv)
			continue
		}
		if iv.Start.Before(used.Start) {
			out = append(out, Interval{Start: iv.Start, End: used.Start})
		}
		if iv.End.After(used.End) {
			out = append(out, Interval{Start: used.End, End: iv.End})
		}
	}
	return out
}
