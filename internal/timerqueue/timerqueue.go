// Package timerqueue implements the min-heap priority queue of (deadline,
// callback, opaque) entries described in §4.2, grounded on
// original_source/src/timeq.c. It is the sole scheduling authority in the
// process: per §5, no other component may hold wall-clock-dependent state
// that expires without a heap entry backing it.
package timerqueue

import (
	"time"

	"ircservd/internal/container"
)

// Func is the callback signature for a scheduled entry. data is the opaque
// pointer given to Add, round-tripped unchanged — this mirrors srvx's
// timeq_func(void *data) signature.
type Func func(data any)

// Matcher bits for Del's wildcarding, named identically to srvx's
// TIMEQ_IGNORE_WHEN/FUNC/DATA so the mapping from spec to code is obvious.
type Matcher int

const (
	IgnoreWhen Matcher = 1 << iota
	IgnoreFunc
	IgnoreData
)

type entry struct {
	when time.Time
	fn   Func
	data any
}

// Queue is a min-heap of timer entries. It is not safe for concurrent use —
// per §5 the reactor's single loop thread is the only caller.
type Queue struct {
	heap *container.PriorityQueue[entry]
}

// New creates an empty timer queue.
func New() *Queue {
	return &Queue{heap: container.NewPriorityQueue[entry]()}
}

// Add schedules fn(data) to run at or after when. O(log n).
func (q *Queue) Add(when time.Time, fn Func, data any) {
	q.heap.Push(when.UnixNano(), entry{when: when, fn: fn, data: data})
}

// Del removes every entry matching (when, fn, data), with mask enabling
// wildcarding of any of the three fields, exactly like timeq_del's mask
// parameter. O(n).
func (q *Queue) Del(when time.Time, fn Func, data any, mask Matcher) int {
	return q.heap.RemoveMatching(func(_ int64, e entry) bool {
		if mask&IgnoreWhen == 0 && !e.when.Equal(when) {
			return false
		}
		if mask&IgnoreFunc == 0 && !sameFunc(e.fn, fn) {
			return false
		}
		if mask&IgnoreData == 0 && e.data != data {
			return false
		}
		return true
	})
}

// sameFunc compares callbacks by identity via reflection on their pointer
// value; Go has no portable equality on func values, so this matches
// function *addresses* the way srvx compared C function pointers.
func sameFunc(a, b Func) bool {
	return funcPointer(a) == funcPointer(b)
}

// Next returns the soonest deadline, or the zero Time if the queue is empty.
func (q *Queue) Next() time.Time {
	e, _, ok := q.heap.Peek()
	if !ok {
		return time.Time{}
	}
	return e.when
}

// Size returns the number of scheduled entries.
func (q *Queue) Size() int { return q.heap.Len() }

// Run pops and invokes every entry whose deadline is <= now, looking at the
// heap afresh after each callback. Callbacks may re-arm themselves (call Add
// again) or remove other entries; an entry a callback adds with a deadline
// <= now is run in this same call.
func (q *Queue) Run(now time.Time) {
	for {
		e, _, ok := q.heap.Peek()
		if !ok || e.when.After(now) {
			return
		}
		q.heap.Pop()
		e.fn(e.data)
	}
}
