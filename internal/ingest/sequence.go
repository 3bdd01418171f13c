package ingest

import "github.com/loykin/chronicle/internal/event"

type mark uint8

const (
	unvisited mark = iota
	visiting
	done
)

// Sequenced is a batch ordered so that parents precede their children.
type Sequenced struct {
	Records []event.Record
	// Cycles lists the ids whose parent edge was dropped to break a cycle.
	Cycles []string
}

// Sequence orders records so that every record whose parent is in the batch
// comes after that parent. It walks parent links depth first with an explicit
// stack; when a walk reaches a parent that is still on the stack the edge is
// a cycle, the descent is skipped and the record is emitted anyway. Every
// record is emitted exactly once. Records sharing an id are resolved against
// the first occurrence.
func Sequence(records []event.Record) Sequenced {
	index := make(map[string]int, len(records))
	for i, r := range records {
		if _, ok := index[r.ID]; !ok {
			index[r.ID] = i
		}
	}

	marks := make([]mark, len(records))
	out := Sequenced{Records: make([]event.Record, 0, len(records))}
	stack := make([]int, 0, 16)

	for i := range records {
		if marks[i] != unvisited {
			continue
		}
		marks[i] = visiting
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			r := records[top]
			if r.HasParent() {
				if p, ok := index[r.ParentID]; ok {
					switch marks[p] {
					case unvisited:
						marks[p] = visiting
						stack = append(stack, p)
						continue
					case visiting:
						out.Cycles = append(out.Cycles, r.ID)
					}
				}
			}
			stack = stack[:len(stack)-1]
			marks[top] = done
			out.Records = append(out.Records, r)
		}
	}
	return out
}
