package history

import (
	"context"
	"time"
)

// EventType defines the kind of ingestion job lifecycle event.
type EventType string

const (
	EventJobStarted   EventType = "job_started"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
)

// Record is the flattened job snapshot carried by an Event.
type Record struct {
	JobID          string     `json:"job_id"`
	Source         string     `json:"source"`
	Status         string     `json:"status"`
	TotalLines     int        `json:"total_lines"`
	ProcessedLines int        `json:"processed_lines"`
	ErrorLines     int        `json:"error_lines"`
	ErrorCount     int        `json:"error_count"`
	LastError      string     `json:"last_error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// EndedAtValue returns the end time as a driver argument, nil when unset.
func EndedAtValue(r Record) any {
	if r.EndedAt == nil {
		return nil
	}
	return r.EndedAt.UTC()
}
