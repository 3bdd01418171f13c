package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loykin/chronicle/internal/event"
	"github.com/loykin/chronicle/internal/metrics"
	"github.com/loykin/chronicle/internal/store"
)

// ErrValidation marks errors caused by caller input. Use errors.Is.
var ErrValidation = errors.New("invalid request")

// ValidationError carries a caller facing message and matches ErrValidation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Response messages.
const (
	MsgGapFound       = "Largest temporal gap identified."
	MsgNoGap          = "No significant temporal gaps found within the specified range."
	MsgTooFewEvents   = "No significant temporal gaps found within the specified range, or too few events."
	MsgPathFound      = "Shortest temporal path found from source to target event."
	MsgNoPath         = "No temporal path found from source to target event."
	MsgInvalidWindow  = "Invalid or missing startDate or endDate"
	MsgPathIDsMissing = "SourceEventId and targetEventId are required."
)

// GapResult is the answer to a temporal gap query.
type GapResult struct {
	LargestGap *Gap   `json:"largestGap"`
	Message    string `json:"message"`
}

// PathStep is one event on an influence path.
type PathStep struct {
	ID              string `json:"event_id"`
	Name            string `json:"event_name"`
	DurationMinutes int64  `json:"duration_minutes"`
}

// PathResult is the answer to an influence path query.
type PathResult struct {
	SourceEventID        string     `json:"sourceEventId"`
	TargetEventID        string     `json:"targetEventId"`
	ShortestPath         []PathStep `json:"shortestPath"`
	TotalDurationMinutes int64      `json:"totalDurationMinutes"`
	Message              string     `json:"message"`
}

// Service answers analytics queries from a store.
type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service { return &Service{store: st} }

func observe(query string, started time.Time, err *error) {
	metrics.ObserveQuery(query, time.Since(started), *err)
}

func normalizeID(id string) string { return strings.ToLower(strings.TrimSpace(id)) }

// Search returns one page of events matching q.
func (s *Service) Search(ctx context.Context, q store.Query) (page store.Page, err error) {
	defer observe("search", time.Now(), &err)
	q.Normalize()
	return s.store.Search(ctx, q)
}

// Timeline returns the subtree rooted at rootID as a nested tree.
func (s *Service) Timeline(ctx context.Context, rootID string) (root *TimelineNode, err error) {
	defer observe("timeline", time.Now(), &err)
	id := normalizeID(rootID)
	rows, err := s.store.Subtree(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load subtree: %w", err)
	}
	root, err = BuildTimeline(id, rows)
	if errors.Is(err, ErrUnresolvedRoot) {
		slog.Error("Timeline has no resolvable root", "root", id, "rows", len(rows))
	}
	return root, err
}

// Overlaps returns every pair of events whose intervals intersect.
func (s *Service) Overlaps(ctx context.Context) (out []Overlap, err error) {
	defer observe("overlaps", time.Now(), &err)
	rows, err := s.store.Overlaps(ctx)
	if err != nil {
		return nil, fmt.Errorf("load overlaps: %w", err)
	}
	return InterpretOverlaps(rows), nil
}

// TemporalGap finds the largest gap between events lying fully inside the
// window [startDate, endDate].
func (s *Service) TemporalGap(ctx context.Context, startDate, endDate string) (res GapResult, err error) {
	defer observe("temporal_gap", time.Now(), &err)
	start, startErr := event.ParseTime(startDate)
	end, endErr := event.ParseTime(endDate)
	if startErr != nil || endErr != nil {
		return GapResult{}, &ValidationError{Msg: MsgInvalidWindow}
	}
	events, err := s.store.InWindow(ctx, start, end)
	if err != nil {
		return GapResult{}, fmt.Errorf("load window: %w", err)
	}
	if len(events) < 2 {
		return GapResult{Message: MsgTooFewEvents}, nil
	}
	if gap := LargestGap(events); gap != nil {
		return GapResult{LargestGap: gap, Message: MsgGapFound}, nil
	}
	return GapResult{Message: MsgNoGap}, nil
}

// InfluencePath finds the parent -> child path from source to target with the
// lowest cumulative duration.
func (s *Service) InfluencePath(ctx context.Context, sourceID, targetID string) (res PathResult, err error) {
	defer observe("influence_path", time.Now(), &err)
	if strings.TrimSpace(sourceID) == "" || strings.TrimSpace(targetID) == "" {
		return PathResult{}, &ValidationError{Msg: MsgPathIDsMissing}
	}
	res = PathResult{SourceEventID: sourceID, TargetEventID: targetID, ShortestPath: []PathStep{}, Message: MsgNoPath}

	nodes, err := s.store.GraphNodes(ctx)
	if err != nil {
		return PathResult{}, fmt.Errorf("load graph: %w", err)
	}
	byID := make(map[string]event.Event, len(nodes))
	durations := make(map[string]int64, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		durations[n.ID] = n.DurationMinutes
	}
	src, dst := normalizeID(sourceID), normalizeID(targetID)
	if _, ok := byID[src]; !ok {
		return res, nil
	}

	path := ShortestPath(BuildGraph(nodes), durations, src, dst)
	if !path.Found() {
		return res, nil
	}
	for _, id := range path.IDs {
		n := byID[id]
		res.ShortestPath = append(res.ShortestPath, PathStep{ID: n.ID, Name: n.Name, DurationMinutes: n.DurationMinutes})
	}
	res.TotalDurationMinutes = path.TotalMinutes
	res.Message = MsgPathFound
	return res, nil
}
