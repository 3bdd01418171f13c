package analytics

import (
	"time"

	"github.com/loykin/chronicle/internal/event"
)

// Gap is an idle interval between two consecutive events.
type Gap struct {
	Start           time.Time       `json:"startOfGap"`
	End             time.Time       `json:"endOfGap"`
	DurationMinutes int64           `json:"durationMinutes"`
	Preceding       PrecedingEvent  `json:"precedingEvent"`
	Succeeding      SucceedingEvent `json:"succeedingEvent"`
}

// PrecedingEvent is the event whose end opens a gap.
type PrecedingEvent struct {
	ID   string    `json:"event_id"`
	Name string    `json:"event_name"`
	End  time.Time `json:"end_date"`
}

// SucceedingEvent is the event whose start closes a gap.
type SucceedingEvent struct {
	ID    string    `json:"event_id"`
	Name  string    `json:"event_name"`
	Start time.Time `json:"start_date"`
}

// LargestGap scans events ordered by start and returns the largest positive
// gap between an event's end and the next event's start. The first of equal
// gaps wins. It returns nil for fewer than two events or when no positive gap
// exists. Minutes are truncated.
func LargestGap(events []event.Event) *Gap {
	if len(events) < 2 {
		return nil
	}
	var (
		best    *Gap
		bestDur time.Duration
	)
	for i := 0; i < len(events)-1; i++ {
		cur, next := events[i], events[i+1]
		d := next.Start.Sub(cur.End)
		if d <= 0 || (best != nil && d <= bestDur) {
			continue
		}
		bestDur = d
		best = &Gap{
			Start:           cur.End,
			End:             next.Start,
			DurationMinutes: int64(d / time.Minute),
			Preceding:       PrecedingEvent{ID: cur.ID, Name: cur.Name, End: cur.End},
			Succeeding:      SucceedingEvent{ID: next.ID, Name: next.Name, Start: next.Start},
		}
	}
	return best
}
