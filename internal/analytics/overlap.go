package analytics

import (
	"math"

	"github.com/loykin/chronicle/internal/event"
	"github.com/loykin/chronicle/internal/store"
)

// Calendar approximations used when flattening an interval.
const (
	minutesPerYear  = 365 * 24 * 60
	minutesPerMonth = 30 * 24 * 60
	minutesPerDay   = 24 * 60
)

// IntervalMinutes flattens iv into whole minutes using 365-day years and
// 30-day months. Seconds are floored.
func IntervalMinutes(iv store.Interval) int64 {
	return int64(iv.Years)*minutesPerYear +
		int64(iv.Months)*minutesPerMonth +
		int64(iv.Days)*minutesPerDay +
		int64(iv.Hours)*60 +
		int64(iv.Minutes) +
		int64(math.Floor(iv.Seconds/60))
}

// Overlap is a pair of intersecting events and the length of the intersection.
type Overlap struct {
	Pair            [2]event.Summary `json:"overlappingEventPairs"`
	DurationMinutes int64            `json:"overlap_duration_minutes"`
}

// InterpretOverlaps converts store rows into response pairs, keeping row order.
func InterpretOverlaps(rows []store.OverlapRow) []Overlap {
	out := make([]Overlap, 0, len(rows))
	for _, r := range rows {
		out = append(out, Overlap{
			Pair:            [2]event.Summary{r.First.Summarize(), r.Second.Summarize()},
			DurationMinutes: IntervalMinutes(r.Interval),
		})
	}
	return out
}
