package ingest

import (
	"fmt"
	"testing"

	"github.com/loykin/chronicle/internal/event"
)

// assertParentsFirst checks every record appears once and after its in-batch
// parent, except for edges reported as broken cycles.
func assertParentsFirst(t *testing.T, in []event.Record, out Sequenced) {
	t.Helper()
	if len(out.Records) != len(in) {
		t.Fatalf("expected %d records, got %d", len(in), len(out.Records))
	}
	pos := make(map[string]int, len(out.Records))
	for i, r := range out.Records {
		if _, dup := pos[r.ID]; dup {
			t.Fatalf("record %s emitted twice", r.ID)
		}
		pos[r.ID] = i
	}
	broken := make(map[string]bool, len(out.Cycles))
	for _, id := range out.Cycles {
		broken[id] = true
	}
	for _, r := range out.Records {
		p, ok := pos[r.ParentID]
		if !r.HasParent() || !ok || broken[r.ID] {
			continue
		}
		if p > pos[r.ID] {
			t.Fatalf("child %s emitted before parent %s", r.ID, r.ParentID)
		}
	}
}

func TestSequenceParentsBeforeChildren(t *testing.T) {
	in := []event.Record{
		rec(1, idD, idC),
		rec(2, idC, idB),
		rec(3, idB, idA),
		rec(4, idA, ""),
	}
	out := Sequence(in)
	assertParentsFirst(t, in, out)
	if got := ids(out.Records); got[0] != idA || got[3] != idD {
		t.Fatalf("unexpected order: %v", got)
	}
	if len(out.Cycles) != 0 {
		t.Fatalf("no cycles expected: %v", out.Cycles)
	}
}

func TestSequenceKeepsInputOrderForIndependentRecords(t *testing.T) {
	in := []event.Record{rec(1, idC, ""), rec(2, idA, ""), rec(3, idB, "")}
	got := ids(Sequence(in).Records)
	if got[0] != idC || got[1] != idA || got[2] != idB {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestSequenceToleratesCycles(t *testing.T) {
	tests := []struct {
		name string
		in   []event.Record
	}{
		{"self", []event.Record{rec(1, idA, idA)}},
		{"two", []event.Record{rec(1, idA, idB), rec(2, idB, idA)}},
		{"three with tail", []event.Record{
			rec(1, idA, idC),
			rec(2, idB, idA),
			rec(3, idC, idB),
			rec(4, idD, idB),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Sequence(tt.in)
			assertParentsFirst(t, tt.in, out)
			if len(out.Cycles) != 1 {
				t.Fatalf("expected one broken edge, got %v", out.Cycles)
			}
		})
	}
}

func TestSequenceDeepChainDoesNotRecurse(t *testing.T) {
	const n = 200000
	in := make([]event.Record, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%08d-0000-4000-8000-000000000000", i)
		parent := ""
		if i+1 < n {
			parent = fmt.Sprintf("%08d-0000-4000-8000-000000000000", i+1)
		}
		in[i] = event.Record{Line: i + 1, ID: id, ParentID: parent}
	}
	out := Sequence(in)
	assertParentsFirst(t, in, out)
	if out.Records[0].ID != in[n-1].ID {
		t.Fatalf("root of the chain must come first")
	}
}
