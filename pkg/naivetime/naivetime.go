// Package naivetime parses and formats the naive local timestamps the rest of
// the repo schedules against.
//
// Timestamps may arrive with a trailing "Z" or an explicit UTC offset (browser
// clients tend to send both forms). Parse deliberately DISCARDS any zone or
// offset and keeps the wall-clock fields, anchored in time.Local. Scheduling
// outcomes depend on this normalization, so it must not be "fixed" into a real
// timezone conversion.
package naivetime

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical wire format for naive timestamps.
const Layout = "2006-01-02T15:04:05"

var layouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse accepts an ISO-8601-ish timestamp with or without a zone designator
// and returns the wall-clock time in time.Local, any offset stripped.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("naivetime: empty timestamp")
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local), nil
	}
	return time.Time{}, fmt.Errorf("naivetime: cannot parse timestamp %q", s)
}

// Format renders t in the canonical naive layout (no zone designator).
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Date truncates t to midnight of its calendar day.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b fall on the same calendar day.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
