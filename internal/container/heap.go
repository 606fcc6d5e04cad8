package container

import "container/heap"

// PriorityQueue is a generic min-heap ordered by a caller-supplied priority,
// backing both the timer queue (§4.2) and any other ordering needs in the
// core (§2 "priority queue"). It wraps the standard library's heap
// algorithms behind a typed API so callers never juggle heap.Interface
// boilerplate themselves.
type PriorityQueue[T any] struct {
	items *pqItems[T]
}

type pqEntry[T any] struct {
	priority int64
	seq      uint64
	value    T
}

type pqItems[T any] struct {
	entries []pqEntry[T]
}

func (p *pqItems[T]) Len() int { return len(p.entries) }
func (p *pqItems[T]) Less(i, j int) bool {
	if p.entries[i].priority != p.entries[j].priority {
		return p.entries[i].priority < p.entries[j].priority
	}
	// Ties broken by insertion order: §5 "the implementation SHOULD not
	// re-order callbacks with equal deadlines after they are both present".
	return p.entries[i].seq < p.entries[j].seq
}
func (p *pqItems[T]) Swap(i, j int) { p.entries[i], p.entries[j] = p.entries[j], p.entries[i] }
func (p *pqItems[T]) Push(x any)    { p.entries = append(p.entries, x.(pqEntry[T])) }
func (p *pqItems[T]) Pop() any {
	old := p.entries
	n := len(old)
	item := old[n-1]
	p.entries = old[:n-1]
	return item
}

// NewPriorityQueue creates an empty queue.
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{items: &pqItems[T]{}}
}

var seqCounter uint64

// Push inserts value with the given priority. O(log n).
func (q *PriorityQueue[T]) Push(priority int64, value T) {
	seqCounter++
	heap.Push(q.items, pqEntry[T]{priority: priority, seq: seqCounter, value: value})
}

// Peek returns the lowest-priority value without removing it.
func (q *PriorityQueue[T]) Peek() (value T, priority int64, ok bool) {
	if len(q.items.entries) == 0 {
		return value, 0, false
	}
	top := q.items.entries[0]
	return top.value, top.priority, true
}

// Pop removes and returns the lowest-priority value. O(log n).
func (q *PriorityQueue[T]) Pop() (value T, priority int64, ok bool) {
	if len(q.items.entries) == 0 {
		return value, 0, false
	}
	e := heap.Pop(q.items).(pqEntry[T])
	return e.value, e.priority, true
}

// Len returns the number of queued entries.
func (q *PriorityQueue[T]) Len() int { return len(q.items.entries) }

// RemoveMatching removes every entry for which pred returns true. O(n).
func (q *PriorityQueue[T]) RemoveMatching(pred func(priority int64, value T) bool) int {
	kept := q.items.entries[:0]
	removed := 0
	for _, e := range q.items.entries {
		if pred(e.priority, e.value) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	q.items.entries = kept
	heap.Init(q.items)
	return removed
}
