package analytics

import (
	"testing"
	"time"

	"github.com/loykin/chronicle/internal/event"
	"github.com/loykin/chronicle/internal/store"
)

func TestIntervalMinutes(t *testing.T) {
	cases := []struct {
		name string
		iv   store.Interval
		want int64
	}{
		{"zero", store.Interval{}, 0},
		{"half hour", store.Interval{Minutes: 30}, 30},
		{"seconds floored", store.Interval{Minutes: 2, Seconds: 59.9}, 2},
		{"days and hours", store.Interval{Days: 1, Hours: 2, Minutes: 3}, 1440 + 120 + 3},
		{"calendar approximation", store.Interval{Years: 1, Months: 2}, 365*1440 + 60*1440},
		{"from seconds", store.IntervalFromSeconds(90061.5), 1440 + 60 + 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IntervalMinutes(tc.iv); got != tc.want {
				t.Fatalf("IntervalMinutes(%+v) = %d, want %d", tc.iv, got, tc.want)
			}
		})
	}
}

func TestInterpretOverlaps(t *testing.T) {
	a := event.Event{ID: "a", Name: "Morning session", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)}
	b := event.Event{ID: "b", Name: "Late session", Start: day.Add(9*time.Hour + 30*time.Minute), End: day.Add(10*time.Hour + 30*time.Minute)}
	out := InterpretOverlaps([]store.OverlapRow{{First: a, Second: b, Interval: store.IntervalFromSeconds(a.End.Sub(b.Start).Seconds())}})
	if len(out) != 1 {
		t.Fatalf("expected one pair, got %d", len(out))
	}
	if out[0].DurationMinutes != 30 {
		t.Fatalf("overlap minutes = %d, want 30", out[0].DurationMinutes)
	}
	if out[0].Pair[0].ID != "a" || out[0].Pair[1].ID != "b" || out[0].Pair[1].Name != "Late session" {
		t.Fatalf("pair: %+v", out[0].Pair)
	}
	if got := InterpretOverlaps(nil); got == nil || len(got) != 0 {
		t.Fatalf("empty input must give an empty, non-nil slice")
	}
}
