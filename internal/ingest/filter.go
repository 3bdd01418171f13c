package ingest

import (
	"fmt"

	"github.com/loykin/chronicle/internal/event"
)

// FilterResult is the outcome of the batch level referential checks.
type FilterResult struct {
	// Kept are the records that passed both checks, in file order.
	Kept []event.Record
	// MissingParent are records whose parent is absent from the batch.
	MissingParent []event.Record
	// Duplicates are later occurrences of an id already kept.
	Duplicates []event.Record
	// Errors holds one message per rejected record, missing parents first.
	Errors []string
}

// Filter rejects records whose parent is not part of the batch and then
// keeps only the first occurrence of every id among the remaining records.
// The parent check runs against the ids of all records, duplicates included.
func Filter(records []event.Record) FilterResult {
	ids := make(map[string]struct{}, len(records))
	for _, r := range records {
		ids[r.ID] = struct{}{}
	}

	res := FilterResult{Kept: make([]event.Record, 0, len(records))}
	withParent := make([]event.Record, 0, len(records))
	for _, r := range records {
		if r.HasParent() {
			if _, ok := ids[r.ParentID]; !ok {
				res.MissingParent = append(res.MissingParent, r)
				res.Errors = append(res.Errors,
					fmt.Sprintf("Line %d: Parent event %s not found in dataset for event %s", r.Line, r.ParentID, r.ID))
				continue
			}
		}
		withParent = append(withParent, r)
	}

	seen := make(map[string]struct{}, len(withParent))
	for _, r := range withParent {
		if _, dup := seen[r.ID]; dup {
			res.Duplicates = append(res.Duplicates, r)
			res.Errors = append(res.Errors, fmt.Sprintf("Line %d: Duplicate event_id %s", r.Line, r.ID))
			continue
		}
		seen[r.ID] = struct{}{}
		res.Kept = append(res.Kept, r)
	}
	return res
}

// ValidCount is the number of records that passed the parent check.
func (r FilterResult) ValidCount() int { return len(r.Kept) + len(r.Duplicates) }
