package analytics

import (
	"reflect"
	"testing"

	"github.com/loykin/chronicle/internal/event"
)

func node(id, parent string, minutes int64) event.Event {
	e := event.Event{ID: id, Name: "event " + id, DurationMinutes: minutes}
	if parent != "" {
		e.ParentID = &parent
	}
	return e
}

func weights(nodes []event.Event) map[string]int64 {
	m := make(map[string]int64, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n.DurationMinutes
	}
	return m
}

func TestBuildGraph(t *testing.T) {
	g := BuildGraph([]event.Event{
		node("a", "", 1),
		node("b", "a", 1),
		node("c", "a", 1),
		node("d", "b", 1),
		node("e", "ghost", 1),
	})
	want := Graph{"a": {"b", "c"}, "b": {"d"}, "ghost": {"e"}}
	if !reflect.DeepEqual(g, want) {
		t.Fatalf("graph = %v, want %v", g, want)
	}
}

func TestShortestPathChain(t *testing.T) {
	nodes := []event.Event{node("A", "", 10), node("B", "A", 20), node("C", "B", 30)}
	g, w := BuildGraph(nodes), weights(nodes)

	cases := []struct {
		name     string
		src, dst string
		ids      []string
		total    int64
	}{
		{"forward", "A", "C", []string{"A", "B", "C"}, 60},
		{"self", "A", "A", []string{"A"}, 10},
		{"wrong direction", "C", "A", []string{}, 0},
		{"unknown target", "A", "Z", []string{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := ShortestPath(g, w, tc.src, tc.dst)
			if !reflect.DeepEqual(p.IDs, tc.ids) || p.TotalMinutes != tc.total {
				t.Fatalf("got %v/%d, want %v/%d", p.IDs, p.TotalMinutes, tc.ids, tc.total)
			}
			if p.Found() != (len(tc.ids) > 0) {
				t.Fatalf("Found() = %v", p.Found())
			}
		})
	}
}

func TestShortestPathPicksCheapestBranch(t *testing.T) {
	// diamond: T is reachable through a long X or through the shorter Y and Z
	g := Graph{
		"R": {"X", "Y"},
		"X": {"T"},
		"Y": {"Z"},
		"Z": {"T"},
	}
	w := map[string]int64{"R": 1, "X": 100, "Y": 5, "Z": 5, "T": 1}
	p := ShortestPath(g, w, "R", "T")
	if !reflect.DeepEqual(p.IDs, []string{"R", "Y", "Z", "T"}) || p.TotalMinutes != 12 {
		t.Fatalf("got %v/%d", p.IDs, p.TotalMinutes)
	}
}

func TestShortestPathToleratesCycles(t *testing.T) {
	g := Graph{"A": {"B"}, "B": {"C"}, "C": {"A"}}
	w := map[string]int64{"A": 1, "B": 1, "C": 1}
	if p := ShortestPath(g, w, "A", "D"); p.Found() {
		t.Fatalf("unexpected path %v", p.IDs)
	}
	if p := ShortestPath(g, w, "B", "A"); !reflect.DeepEqual(p.IDs, []string{"B", "C", "A"}) || p.TotalMinutes != 3 {
		t.Fatalf("got %v/%d", p.IDs, p.TotalMinutes)
	}
}

func TestShortestPathZeroDurations(t *testing.T) {
	g := Graph{"A": {"B", "C"}, "B": {"D"}, "C": {"D"}}
	p := ShortestPath(g, map[string]int64{}, "A", "D")
	// equal costs resolve in push order
	if !reflect.DeepEqual(p.IDs, []string{"A", "B", "D"}) || p.TotalMinutes != 0 {
		t.Fatalf("got %v/%d", p.IDs, p.TotalMinutes)
	}
}
