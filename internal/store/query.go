package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/loykin/chronicle/internal/event"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var sortFields = map[string]bool{
	"event_name":       true,
	"start_date":       true,
	"end_date":         true,
	"duration_minutes": true,
}

// Query holds search filters, sort and pagination.
type Query struct {
	Name       string
	StartAfter *time.Time
	EndBefore  *time.Time
	SortBy     string
	SortOrder  string
	Page       int
	Limit      int
}

// Normalize replaces unknown sort fields/orders and out of range paging with defaults.
func (q *Query) Normalize() {
	q.SortBy = strings.TrimSpace(q.SortBy)
	if !sortFields[q.SortBy] {
		q.SortBy = "start_date"
	}
	q.SortOrder = strings.ToLower(strings.TrimSpace(q.SortOrder))
	if q.SortOrder != "asc" && q.SortOrder != "desc" {
		q.SortOrder = "asc"
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
}

// Offset returns the row offset for the normalized page.
func (q Query) Offset() int { return (q.Page - 1) * q.Limit }

// Page is one page of search results.
type Page struct {
	Total int64         `json:"totalEvents"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Items []event.Event `json:"events"`
}

// Placeholder renders the n-th (1-based) bind parameter for a dialect.
type Placeholder func(n int) string

// DollarPlaceholder renders $1, $2, ... (postgres).
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// QuestionPlaceholder renders ? (sqlite).
func QuestionPlaceholder(int) string { return "?" }

// SearchClause builds the WHERE clause for q. like is the case-insensitive
// match operator of the dialect and conv adapts time arguments to the column encoding.
func SearchClause(q Query, ph Placeholder, like string, conv func(time.Time) any) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if name := strings.TrimSpace(q.Name); name != "" {
		args = append(args, "%"+name+"%")
		conds = append(conds, fmt.Sprintf("event_name %s %s", like, ph(len(args))))
	}
	if q.StartAfter != nil {
		args = append(args, conv(*q.StartAfter))
		conds = append(conds, "start_date >= "+ph(len(args)))
	}
	if q.EndBefore != nil {
		args = append(args, conv(*q.EndBefore))
		conds = append(conds, "end_date <= "+ph(len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// OrderClause returns the ORDER BY clause of a normalized query. A stable
// tiebreaker on event_id keeps pagination deterministic.
func OrderClause(q Query) string {
	return fmt.Sprintf("ORDER BY %s %s, event_id ASC", q.SortBy, strings.ToUpper(q.SortOrder))
}
