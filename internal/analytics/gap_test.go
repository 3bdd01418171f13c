package analytics

import (
	"testing"
	"time"

	"github.com/loykin/chronicle/internal/event"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func span(id string, from, to string) event.Event {
	parse := func(s string) time.Time {
		t, err := time.Parse("15:04:05", s)
		if err != nil {
			panic(err)
		}
		return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second)
	}
	return event.Event{ID: id, Name: "event " + id, Start: parse(from), End: parse(to)}
}

func TestLargestGapTwoEvents(t *testing.T) {
	g := LargestGap([]event.Event{span("a", "10:00:00", "11:00:00"), span("b", "12:30:00", "13:00:00")})
	if g == nil {
		t.Fatalf("expected a gap")
	}
	if g.DurationMinutes != 90 || g.Preceding.ID != "a" || g.Succeeding.ID != "b" {
		t.Fatalf("unexpected gap: %+v", g)
	}
	if !g.Start.Equal(day.Add(11*time.Hour)) || !g.End.Equal(day.Add(12*time.Hour+30*time.Minute)) {
		t.Fatalf("gap bounds: %v %v", g.Start, g.End)
	}
}

func TestLargestGapTooFew(t *testing.T) {
	if g := LargestGap(nil); g != nil {
		t.Fatalf("expected nil for no events")
	}
	if g := LargestGap([]event.Event{span("a", "10:00:00", "11:00:00")}); g != nil {
		t.Fatalf("expected nil for one event")
	}
}

func TestLargestGapRules(t *testing.T) {
	cases := []struct {
		name    string
		events  []event.Event
		want    int64
		wantPre string
		none    bool
	}{
		{
			name: "overlapping only",
			events: []event.Event{
				span("a", "10:00:00", "12:00:00"),
				span("b", "11:00:00", "13:00:00"),
			},
			none: true,
		},
		{
			name: "touching is not a gap",
			events: []event.Event{
				span("a", "10:00:00", "11:00:00"),
				span("b", "11:00:00", "12:00:00"),
			},
			none: true,
		},
		{
			name: "first of equal gaps wins",
			events: []event.Event{
				span("a", "08:00:00", "09:00:00"),
				span("b", "10:00:00", "11:00:00"),
				span("c", "12:00:00", "13:00:00"),
			},
			want:    60,
			wantPre: "a",
		},
		{
			name: "maximum kept",
			events: []event.Event{
				span("a", "08:00:00", "09:00:00"),
				span("b", "09:10:00", "10:00:00"),
				span("c", "13:00:00", "14:00:00"),
				span("d", "14:05:00", "15:00:00"),
			},
			want:    180,
			wantPre: "b",
		},
		{
			name: "minutes truncated",
			events: []event.Event{
				span("a", "08:00:00", "09:00:00"),
				span("b", "09:01:59", "10:00:00"),
			},
			want:    1,
			wantPre: "a",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := LargestGap(tc.events)
			if tc.none {
				if g != nil {
					t.Fatalf("expected no gap, got %+v", g)
				}
				return
			}
			if g == nil || g.DurationMinutes != tc.want || g.Preceding.ID != tc.wantPre {
				t.Fatalf("got %+v, want %d minutes after %s", g, tc.want, tc.wantPre)
			}
		})
	}
}
