package ingest

import (
	"strconv"
	"strings"

	"github.com/loykin/chronicle/internal/event"
)

// Rule violations reported by Validate, in evaluation order.
const (
	ErrFieldCount    = "Incorrect number of fields"
	ErrEventID       = "Invalid event_id format (must be UUID)"
	ErrEmptyName     = "Event name cannot be empty"
	ErrStartDate     = "Invalid start_date format"
	ErrEndDate       = "Invalid end_date format"
	ErrInterval      = "end_date must be after start_date"
	ErrParentID      = "Invalid parent_id format (must be UUID or NULL)"
	ErrResearchValue = "research_value must be a number"
)

// ViolationSeparator joins the violations of one line in a job error.
const ViolationSeparator = "; "

// Validate checks one raw line against the fixed record schema. Every rule
// is evaluated independently and all violations are returned in rule order.
// When the returned slice is empty the record is fully populated.
func Validate(line int, raw string) (event.Record, []string) {
	fields := strings.Split(raw, event.Delimiter)
	var violations []string
	if len(fields) != event.FieldCount {
		violations = append(violations, ErrFieldCount)
	}
	field := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}

	rec := event.Record{Line: line, Raw: raw}

	rec.ID = strings.ToLower(field(0))
	if !event.IsID(rec.ID) {
		violations = append(violations, ErrEventID)
	}

	rec.Name = field(1)
	if rec.Name == "" {
		violations = append(violations, ErrEmptyName)
	}

	start, startErr := event.ParseTime(field(2))
	if startErr != nil {
		violations = append(violations, ErrStartDate)
	}
	end, endErr := event.ParseTime(field(3))
	if endErr != nil {
		violations = append(violations, ErrEndDate)
	}
	if startErr == nil && endErr == nil && !end.After(start) {
		violations = append(violations, ErrInterval)
	}
	rec.Start, rec.End = start, end

	switch parent := field(4); {
	case parent == event.NullParent:
	case event.IsID(parent):
		rec.ParentID = strings.ToLower(parent)
	default:
		violations = append(violations, ErrParentID)
	}

	if rv := field(5); rv != "" {
		// both backends store research_value as a 32-bit INTEGER
		n, err := strconv.ParseInt(rv, 10, 32)
		if err != nil {
			violations = append(violations, ErrResearchValue)
		} else {
			rec.ResearchValue = &n
		}
	}

	if desc := field(6); desc != "" {
		rec.Description = &desc
	}

	return rec, violations
}
