package event

import (
	"encoding/json"
	"time"
)

// NullParent is the literal used in ingestion files for an event without a parent.
const NullParent = "NULL"

// Delimiter separates the fields of one ingestion line.
const Delimiter = "|"

// FieldCount is the fixed number of fields in one ingestion line:
// id, name, start, end, parent, research value, description.
const FieldCount = 7

// Event is a persisted node of the hierarchy.
// DurationMinutes is computed by the store from Start/End and is never written.
type Event struct {
	ID              string          `json:"event_id"`
	Name            string          `json:"event_name"`
	Start           time.Time       `json:"start_date"`
	End             time.Time       `json:"end_date"`
	DurationMinutes int64           `json:"duration_minutes"`
	ParentID        *string         `json:"parent_id"`
	ResearchValue   *int64          `json:"research_value,omitempty"`
	Description     *string         `json:"description,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at,omitempty"`
}

// HasParent reports whether the event declares a parent reference.
func (e Event) HasParent() bool { return e.ParentID != nil && *e.ParentID != "" }

// Summary is the short form of an event used in analytics responses.
type Summary struct {
	ID    string    `json:"event_id"`
	Name  string    `json:"event_name"`
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Summarize returns the short form of e.
func (e Event) Summarize() Summary {
	return Summary{ID: e.ID, Name: e.Name, Start: e.Start, End: e.End}
}

// Record is one parsed ingestion line. It only lives for the duration of a job.
type Record struct {
	Line          int
	ID            string
	Name          string
	Start         time.Time
	End           time.Time
	ParentID      string // empty when the line carried NULL
	ResearchValue *int64
	Description   *string
	Raw           string
}

// HasParent reports whether the record references a parent.
func (r Record) HasParent() bool { return r.ParentID != "" }

// Event converts the record into an insertable event with no parent set.
func (r Record) Event() Event {
	return Event{
		ID:            r.ID,
		Name:          r.Name,
		Start:         r.Start,
		End:           r.End,
		ResearchValue: r.ResearchValue,
		Description:   r.Description,
	}
}
