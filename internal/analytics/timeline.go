package analytics

import (
	"errors"
	"time"

	"github.com/loykin/chronicle/internal/event"
)

var (
	// ErrNotFound is returned when the requested root event does not exist.
	ErrNotFound = errors.New("root event not found")
	// ErrUnresolvedRoot means the subtree rows contain no node that can act
	// as root, which points to inconsistent parent data.
	ErrUnresolvedRoot = errors.New("unable to resolve root hierarchy")
)

// TimelineNode is one event of a reconstructed subtree.
type TimelineNode struct {
	ID              string          `json:"event_id"`
	Name            string          `json:"event_name"`
	Description     *string         `json:"description"`
	Start           time.Time       `json:"start_date"`
	End             time.Time       `json:"end_date"`
	DurationMinutes int64           `json:"duration_minutes"`
	ParentID        *string         `json:"parent_id"`
	Children        []*TimelineNode `json:"children"`
}

// BuildTimeline nests the flat subtree rows under their parents. Children
// keep row order. The root is the node whose parent is missing from rows;
// rootID is preferred when several qualify.
func BuildTimeline(rootID string, rows []event.Event) (*TimelineNode, error) {
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	nodes := make(map[string]*TimelineNode, len(rows))
	order := make([]*TimelineNode, 0, len(rows))
	for _, e := range rows {
		if _, dup := nodes[e.ID]; dup {
			continue
		}
		n := &TimelineNode{
			ID:              e.ID,
			Name:            e.Name,
			Description:     e.Description,
			Start:           e.Start,
			End:             e.End,
			DurationMinutes: e.DurationMinutes,
			ParentID:        e.ParentID,
			Children:        []*TimelineNode{},
		}
		nodes[e.ID] = n
		order = append(order, n)
	}
	if _, ok := nodes[rootID]; !ok {
		return nil, ErrNotFound
	}

	var root *TimelineNode
	for _, n := range order {
		var parent *TimelineNode
		if n.ParentID != nil {
			parent = nodes[*n.ParentID]
		}
		if parent == nil {
			if root == nil || n.ID == rootID {
				root = n
			}
			continue
		}
		parent.Children = append(parent.Children, n)
	}
	if root == nil {
		return nil, ErrUnresolvedRoot
	}
	return root, nil
}
