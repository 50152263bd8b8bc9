package scheduler

import (
	"testing"
	"time"
)

var testWin = Window{StartHour: 9, EndHour: 17}

func at(t *testing.T, day string, hour, min int) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", day, time.Local)
	if err != nil {
		t.Fatalf("bad day %q: %v", day, err)
	}
	return d.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func TestFreeSlots(t *testing.T) {
	t.Parallel()
	const day = "2026-03-02"
	otherNow := at(t, "2026-03-01", 12, 0)

	tests := []struct {
		name string
		busy []Interval
		now  time.Time
		want []Interval
	}{
		{
			name: "empty day",
			now:  otherNow,
			want: []Interval{{at(t, day, 9, 0), at(t, day, 17, 0)}},
		},
		{
			name: "busy splits the day",
			busy: []Interval{
				{at(t, day, 13, 0), at(t, day, 14, 0)},
				{at(t, day, 10, 0), at(t, day, 11, 0)},
			},
			now: otherNow,
			want: []Interval{
				{at(t, day, 9, 0), at(t, day, 10, 0)},
				{at(t, day, 11, 0), at(t, day, 13, 0)},
				{at(t, day, 14, 0), at(t, day, 17, 0)},
			},
		},
		{
			name: "today is clamped to now",
			now:  at(t, day, 10, 30),
			want: []Interval{{at(t, day, 10, 30), at(t, day, 17, 0)}},
		},
		{
			name: "now past the window yields nothing",
			now:  at(t, day, 18, 0),
			want: nil,
		},
		{
			name: "busy on another day is ignored",
			busy: []Interval{{at(t, "2026-03-03", 9, 0), at(t, "2026-03-03", 17, 0)}},
			now:  otherNow,
			want: []Interval{{at(t, day, 9, 0), at(t, day, 17, 0)}},
		},
		{
			name: "busy running past the window end",
			busy: []Interval{{at(t, day, 15, 0), at(t, day, 19, 0)}},
			now:  otherNow,
			want: []Interval{{at(t, day, 9, 0), at(t, day, 15, 0)}},
		},
		{
			name: "busy covering the whole window",
			busy: []Interval{{at(t, day, 8, 0), at(t, day, 18, 0)}},
			now:  otherNow,
			want: nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := FreeSlots(at(t, day, 0, 0), tc.busy, testWin, tc.now)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d slots %v, want %d", len(got), got, len(tc.want))
			}
			for i := range got {
				if !got[i].Start.Equal(tc.want[i].Start) || !got[i].End.Equal(tc.want[i].End) {
					t.Fatalf("slot %d: got %v..%v, want %v..%v",
						i, got[i].Start, got[i].End, tc.want[i].Start, tc.want[i].End)
				}
			}
		})
	}
}

func TestFreeSlotsDSTTransition(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name string
		day  time.Time
	}{
		{"spring forward", time.Date(2026, time.March, 8, 0, 0, 0, 0, loc)},
		{"fall back", time.Date(2026, time.November, 1, 0, 0, 0, 0, loc)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			now := tc.day.AddDate(0, 0, -1)
			got := FreeSlots(tc.day, nil, testWin, now)
			if len(got) != 1 {
				t.Fatalf("got %d slots %v, want 1", len(got), got)
			}
			if h, m, _ := got[0].Start.Clock(); h != 9 || m != 0 {
				t.Fatalf("slot starts at %v, want 09:00 wall clock", got[0].Start)
			}
			if h, m, _ := got[0].End.Clock(); h != 17 || m != 0 {
				t.Fatalf("slot ends at %v, want 17:00 wall clock", got[0].End)
			}
		})
	}
}

func TestFindSlot(t *testing.T) {
	t.Parallel()
	const day = "2026-03-02"
	free := []Interval{
		{at(t, day, 9, 0), at(t, day, 9, 30)},
		{at(t, day, 11, 0), at(t, day, 13, 0)},
		{at(t, day, 14, 0), at(t, day, 17, 0)},
	}

	t.Run("too small slots are skipped", func(t *testing.T) {
		slot, ok := FindSlot(free, time.Hour, time.Time{})
		if !ok {
			t.Fatal("no slot found")
		}
		if !slot.Start.Equal(at(t, day, 11, 0)) || !slot.End.Equal(at(t, day, 12, 0)) {
			t.Fatalf("got %v..%v", slot.Start, slot.End)
		}
	})

	t.Run("deadline filters later candidates", func(t *testing.T) {
		// Both the 11:00 and 14:00 slots fit; only 11:00 starts before the
		// deadline.
		slot, ok := FindSlot(free, 2*time.Hour, at(t, day, 12, 0))
		if !ok {
			t.Fatal("no slot found")
		}
		if !slot.Start.Equal(at(t, day, 11, 0)) {
			t.Fatalf("got start %v, want 11:00", slot.Start)
		}
	})

	t.Run("deadline preference degrades gracefully", func(t *testing.T) {
		// Nothing starts before 09:00, so the earliest fitting slot wins.
		slot, ok := FindSlot(free, time.Hour, at(t, day, 9, 0))
		if !ok {
			t.Fatal("no slot found")
		}
		if !slot.Start.Equal(at(t, day, 11, 0)) {
			t.Fatalf("got start %v, want 11:00", slot.Start)
		}
	})

	t.Run("nothing fits", func(t *testing.T) {
		if _, ok := FindSlot(free, 4*time.Hour, time.Time{}); ok {
			t.Fatal("found a slot that cannot exist")
		}
	})
}

func TestRemoveInterval(t *testing.T) {
	t.Parallel()
	const day = "2026-03-02"
	free := []Interval{
		{at(t, day, 9, 0), at(t, day, 12, 0)},
		{at(t, day, 14, 0), at(t, day, 17, 0)},
	}

	got := RemoveInterval(free, Interval{at(t, day, 10, 0), at(t, day, 11, 0)})
	want := []Interval{
		{at(t, day, 9, 0), at(t, day, 10, 0)},
		{at(t, day, 11, 0), at(t, day, 12, 0)},
		{at(t, day, 14, 0), at(t, day, 17, 0)},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range got {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Fatalf("slot %d: got %v..%v", i, got[i].Start, got[i].End)
		}
	}

	// Removing a leading span leaves only the tail.
	got = RemoveInterval(free, Interval{at(t, day, 9, 0), at(t, day, 12, 0)})
	if len(got) != 1 || !got[0].Start.Equal(at(t, day, 14, 0)) {
		t.Fatalf("got %v", got)
	}
}
