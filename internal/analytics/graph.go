package analytics

import (
	"container/heap"

	"github.com/loykin/chronicle/internal/event"
)

// Graph maps an event id to the ids of its direct children, in input order.
type Graph map[string][]string

// BuildGraph derives parent -> child edges from a flat node list in one pass.
// Nodes without a parent add no edge.
func BuildGraph(nodes []event.Event) Graph {
	g := make(Graph, len(nodes))
	for _, n := range nodes {
		if !n.HasParent() {
			continue
		}
		g[*n.ParentID] = append(g[*n.ParentID], n.ID)
	}
	return g
}

// Path is the result of a shortest path search. IDs is empty when the
// target is unreachable.
type Path struct {
	IDs          []string
	TotalMinutes int64
}

// Found reports whether a path exists.
func (p Path) Found() bool { return len(p.IDs) > 0 }

// ShortestPath finds the path from source to target that minimizes the sum
// of node durations, following parent -> child edges only. The source's own
// duration seeds the cost. Unknown ids weigh zero.
func ShortestPath(g Graph, durations map[string]int64, source, target string) Path {
	if source == target {
		return Path{IDs: []string{source}, TotalMinutes: durations[source]}
	}

	visited := make(map[string]bool)
	frontier := &pathQueue{}
	heap.Push(frontier, &pathItem{id: source, cost: durations[source]})

	for frontier.Len() > 0 {
		cur := heap.Pop(frontier).(*pathItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true
		if cur.id == target {
			return Path{IDs: cur.ids(), TotalMinutes: cur.cost}
		}
		for _, child := range g[cur.id] {
			if visited[child] {
				continue
			}
			heap.Push(frontier, &pathItem{id: child, cost: cur.cost + durations[child], prev: cur})
		}
	}
	return Path{IDs: []string{}}
}

type pathItem struct {
	id   string
	cost int64
	prev *pathItem
	// seq breaks cost ties in push order
	seq int
}

func (it *pathItem) ids() []string {
	n := 0
	for p := it; p != nil; p = p.prev {
		n++
	}
	out := make([]string, n)
	for p := it; p != nil; p = p.prev {
		n--
		out[n] = p.id
	}
	return out
}

// pathQueue is a min-heap on accumulated cost.
type pathQueue struct {
	items []*pathItem
	next  int
}

func (q *pathQueue) Len() int { return len(q.items) }

func (q *pathQueue) Less(i, j int) bool {
	if q.items[i].cost != q.items[j].cost {
		return q.items[i].cost < q.items[j].cost
	}
	return q.items[i].seq < q.items[j].seq
}

func (q *pathQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *pathQueue) Push(x any) {
	it := x.(*pathItem)
	it.seq = q.next
	q.next++
	q.items = append(q.items, it)
}

func (q *pathQueue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return it
}
