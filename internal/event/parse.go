package event

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTime is returned by ParseTime for values in none of the accepted layouts.
var ErrInvalidTime = errors.New("invalid timestamp")

// timeLayouts are tried in order. Layouts without an offset are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses s in one of the accepted layouts and returns it in UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidTime
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidTime
}

// IsID reports whether s is an event identifier: the canonical 36 character
// UUID text form (8-4-4-4-12 hex digits, any case).
func IsID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// NewID returns a fresh random event identifier.
func NewID() string { return uuid.NewString() }
