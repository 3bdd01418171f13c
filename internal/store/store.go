package store

import (
	"context"
	"errors"
	"time"

	"github.com/loykin/chronicle/internal/event"
)

var (
	// ErrNotFound is returned when a looked up event does not exist.
	ErrNotFound = errors.New("event not found")
	// ErrConflict wraps unique/primary key violations.
	ErrConflict = errors.New("event already exists")
	// ErrConstraint wraps other integrity violations (check, foreign key, not null).
	ErrConstraint = errors.New("constraint violation")
)

// Store is the persistence contract for historical events.
// Implementations must be safe for concurrent use; every transaction returned
// by BeginTx is isolated from the others by the database.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	BeginTx(ctx context.Context) (Tx, error)

	Get(ctx context.Context, id string) (event.Event, error)
	Search(ctx context.Context, q Query) (Page, error)
	// Subtree returns the root and every event transitively below it.
	Subtree(ctx context.Context, rootID string) ([]event.Event, error)
	// InWindow returns events fully inside [start, end], ordered by start.
	InWindow(ctx context.Context, start, end time.Time) ([]event.Event, error)
	// Overlaps returns every pair (a, b) with a.ID < b.ID whose intervals intersect.
	Overlaps(ctx context.Context) ([]OverlapRow, error)
	// GraphNodes returns id, name, duration and parent of every event.
	GraphNodes(ctx context.Context) ([]event.Event, error)

	Close() error
}

// Tx is one atomic unit of work used by the ingestion loader.
// Savepoints let a failed statement be undone without aborting the transaction.
type Tx interface {
	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error

	// InsertEvent inserts e with its parent reference forced to NULL.
	InsertEvent(ctx context.Context, e event.Event) error
	// SetParent sets the parent of id and returns the number of affected rows.
	SetParent(ctx context.Context, id, parentID string) (int64, error)

	Commit() error
	Rollback() error
}

// Interval is a calendar interval as reported by the store for an overlap.
type Interval struct {
	Years   int
	Months  int
	Days    int
	Hours   int
	Minutes int
	Seconds float64
}

// IntervalFromSeconds splits a non-negative number of seconds into days,
// hours, minutes and seconds. Years and months are left at zero.
func IntervalFromSeconds(sec float64) Interval {
	if sec <= 0 {
		return Interval{}
	}
	whole := int64(sec)
	frac := sec - float64(whole)
	iv := Interval{
		Days:    int(whole / 86400),
		Hours:   int(whole % 86400 / 3600),
		Minutes: int(whole % 3600 / 60),
	}
	iv.Seconds = float64(whole%60) + frac
	return iv
}

// OverlapRow is one pair of temporally overlapping events.
type OverlapRow struct {
	First    event.Event
	Second   event.Event
	Interval Interval
}
