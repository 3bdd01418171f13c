// Package storetest holds the behavioural suite shared by every store.Store
// implementation. Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loykin/chronicle/internal/event"
	"github.com/loykin/chronicle/internal/store"
)

// Fixed ids keep ordering assertions stable across backends.
const (
	RootID  = "10000000-0000-4000-8000-000000000001"
	ChildID = "20000000-0000-4000-8000-000000000002"
	LeafID  = "30000000-0000-4000-8000-000000000003"
	LoneID  = "40000000-0000-4000-8000-000000000004"
)

// T0 is the reference instant all fixtures are placed around.
var T0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Seed loads a small hierarchy root -> child -> leaf plus one unrelated event.
//
//	root   00:00 - 03:00
//	child  00:30 - 01:30  (parent root)
//	leaf   01:00 - 01:10  (parent child)
//	lone   05:00 - 05:20
func Seed(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	desc := "the beginning"
	rv := int64(7)
	events := []event.Event{
		{ID: RootID, Name: "Founding Era", Start: T0, End: T0.Add(3 * time.Hour), Description: &desc, ResearchValue: &rv},
		{ID: ChildID, Name: "First Council", Start: T0.Add(30 * time.Minute), End: T0.Add(90 * time.Minute)},
		{ID: LeafID, Name: "Opening Speech", Start: T0.Add(time.Hour), End: T0.Add(70 * time.Minute)},
		{ID: LoneID, Name: "Harvest Festival", Start: T0.Add(5 * time.Hour), End: T0.Add(5*time.Hour + 20*time.Minute)},
	}
	for _, e := range events {
		if err := tx.InsertEvent(ctx, e); err != nil {
			_ = tx.Rollback()
			t.Fatalf("insert %s: %v", e.ID, err)
		}
	}
	for id, parent := range map[string]string{ChildID: RootID, LeafID: ChildID} {
		n, err := tx.SetParent(ctx, id, parent)
		if err != nil || n != 1 {
			_ = tx.Rollback()
			t.Fatalf("set parent %s: n=%d err=%v", id, n, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

// Run executes the shared suite against an empty store with its schema in place.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	Seed(t, s)
	ctx := context.Background()

	t.Run("Get", func(t *testing.T) {
		e, err := s.Get(ctx, RootID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if e.Name != "Founding Era" || e.DurationMinutes != 180 || e.HasParent() {
			t.Fatalf("unexpected root: %+v", e)
		}
		if e.Description == nil || *e.Description != "the beginning" || e.ResearchValue == nil || *e.ResearchValue != 7 {
			t.Fatalf("optional fields not persisted: %+v", e)
		}
		if !e.Start.Equal(T0) || !e.End.Equal(T0.Add(3*time.Hour)) {
			t.Fatalf("timestamps changed: %v %v", e.Start, e.End)
		}
		c, err := s.Get(ctx, ChildID)
		if err != nil || c.ParentID == nil || *c.ParentID != RootID {
			t.Fatalf("child parent not set: %+v err=%v", c, err)
		}
		if _, err := s.Get(ctx, "50000000-0000-4000-8000-000000000005"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := s.Get(ctx, "not-an-id"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
		}
	})

	t.Run("Search", func(t *testing.T) {
		p, err := s.Search(ctx, store.Query{Name: "council"})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if p.Total != 1 || len(p.Items) != 1 || p.Items[0].ID != ChildID {
			t.Fatalf("name filter: %+v", p)
		}
		if p.Page != 1 || p.Limit != store.DefaultLimit {
			t.Fatalf("defaults not applied: %+v", p)
		}

		p, err = s.Search(ctx, store.Query{SortBy: "duration_minutes", SortOrder: "desc", Limit: 2, Page: 2})
		if err != nil {
			t.Fatalf("search sorted: %v", err)
		}
		if p.Total != 4 || len(p.Items) != 2 {
			t.Fatalf("paging: %+v", p)
		}
		// durations: root 180, child 60, lone 20, leaf 10
		if p.Items[0].ID != LoneID || p.Items[1].ID != LeafID {
			t.Fatalf("unexpected order on page 2: %s %s", p.Items[0].ID, p.Items[1].ID)
		}

		after := T0.Add(20 * time.Minute)
		before := T0.Add(2 * time.Hour)
		p, err = s.Search(ctx, store.Query{StartAfter: &after, EndBefore: &before, SortBy: "bogus; DROP TABLE x"})
		if err != nil {
			t.Fatalf("search window: %v", err)
		}
		if p.Total != 2 || p.Items[0].ID != ChildID || p.Items[1].ID != LeafID {
			t.Fatalf("window filter: %+v", p)
		}
	})

	t.Run("Subtree", func(t *testing.T) {
		rows, err := s.Subtree(ctx, RootID)
		if err != nil {
			t.Fatalf("subtree: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(rows))
		}
		rows, err = s.Subtree(ctx, LoneID)
		if err != nil || len(rows) != 1 {
			t.Fatalf("lone subtree: %d %v", len(rows), err)
		}
		rows, err = s.Subtree(ctx, "50000000-0000-4000-8000-000000000005")
		if err != nil || len(rows) != 0 {
			t.Fatalf("missing root: %d %v", len(rows), err)
		}
	})

	t.Run("InWindow", func(t *testing.T) {
		rows, err := s.InWindow(ctx, T0.Add(15*time.Minute), T0.Add(6*time.Hour))
		if err != nil {
			t.Fatalf("window: %v", err)
		}
		want := []string{ChildID, LeafID, LoneID}
		if len(rows) != len(want) {
			t.Fatalf("expected %d rows, got %d", len(want), len(rows))
		}
		for i, id := range want {
			if rows[i].ID != id {
				t.Fatalf("row %d: got %s want %s", i, rows[i].ID, id)
			}
		}
	})

	t.Run("Overlaps", func(t *testing.T) {
		rows, err := s.Overlaps(ctx)
		if err != nil {
			t.Fatalf("overlaps: %v", err)
		}
		// root/child 60m, root/leaf 10m, child/leaf 10m
		if len(rows) != 3 {
			t.Fatalf("expected 3 pairs, got %d", len(rows))
		}
		want := map[[2]string]int{
			{RootID, ChildID}: 60,
			{RootID, LeafID}:  10,
			{ChildID, LeafID}: 10,
		}
		for _, r := range rows {
			if r.First.ID >= r.Second.ID {
				t.Fatalf("pair not ordered: %s %s", r.First.ID, r.Second.ID)
			}
			m, ok := want[[2]string{r.First.ID, r.Second.ID}]
			if !ok {
				t.Fatalf("unexpected pair %s %s", r.First.ID, r.Second.ID)
			}
			iv := r.Interval
			if got := iv.Days*1440 + iv.Hours*60 + iv.Minutes; got != m || iv.Seconds > 0.5 {
				t.Fatalf("pair %s/%s: interval %+v, want %d minutes", r.First.ID, r.Second.ID, iv, m)
			}
		}
	})

	t.Run("GraphNodes", func(t *testing.T) {
		nodes, err := s.GraphNodes(ctx)
		if err != nil {
			t.Fatalf("graph nodes: %v", err)
		}
		if len(nodes) != 4 {
			t.Fatalf("expected 4 nodes, got %d", len(nodes))
		}
		for _, n := range nodes {
			if n.ID == LeafID && (n.ParentID == nil || *n.ParentID != ChildID || n.DurationMinutes != 10) {
				t.Fatalf("leaf node: %+v", n)
			}
		}
	})

	t.Run("Constraints", func(t *testing.T) {
		tx, err := s.BeginTx(ctx)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := tx.Savepoint(ctx, "sp_dup"); err != nil {
			t.Fatalf("savepoint: %v", err)
		}
		err = tx.InsertEvent(ctx, event.Event{ID: RootID, Name: "again", Start: T0, End: T0.Add(time.Minute)})
		if !errors.Is(err, store.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		if err := tx.RollbackToSavepoint(ctx, "sp_dup"); err != nil {
			t.Fatalf("rollback to savepoint: %v", err)
		}

		// the transaction is still usable after a rolled back statement
		if err := tx.Savepoint(ctx, "sp_ok"); err != nil {
			t.Fatalf("savepoint: %v", err)
		}
		id := "60000000-0000-4000-8000-000000000006"
		if err := tx.InsertEvent(ctx, event.Event{ID: id, Name: "later", Start: T0, End: T0.Add(time.Minute)}); err != nil {
			t.Fatalf("insert after rollback: %v", err)
		}
		if err := tx.ReleaseSavepoint(ctx, "sp_ok"); err != nil {
			t.Fatalf("release: %v", err)
		}
		if n, err := tx.SetParent(ctx, "70000000-0000-4000-8000-000000000007", RootID); err != nil || n != 0 {
			t.Fatalf("set parent of missing row: n=%d err=%v", n, err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("rollback: %v", err)
		}
		if _, err := s.Get(ctx, id); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("rolled back insert is visible: %v", err)
		}
	})
}

// RunReadsDuringWrite checks that reads are served while a write
// transaction is open and that they do not see its uncommitted rows.
// Backends limited to a single connection must not call it.
func RunReadsDuringWrite(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.BeginTx(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	id := "80000000-0000-4000-8000-000000000008"
	if err := tx.InsertEvent(ctx, event.Event{ID: id, Name: "pending", Start: T0, End: T0.Add(time.Hour)}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.Ping(rctx); err != nil {
		t.Fatalf("ping during open transaction: %v", err)
	}
	if _, err := s.Overlaps(rctx); err != nil {
		t.Fatalf("overlaps during open transaction: %v", err)
	}
	if _, err := s.Get(rctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("uncommitted row visible or read failed: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.Get(ctx, id); err != nil {
		t.Fatalf("committed row not visible: %v", err)
	}
}
