package event

import "container/heap"

// entry is one queued event plus the monotonically increasing sequence
// number used to break priority ties in FIFO order (§4.4 "events of equal
// priority are delivered in the order they were pushed").
type entry struct {
	ev       Event
	priority uint32
	seq      uint64
	index    int
}

// priorityHeap is a container/heap.Interface ordered by (priority asc, seq
// asc): lower priority value drains first (lower = more urgent), equal
// priority drains oldest-first.
//
// client-go's util/workqueue was considered for this role and rejected —
// it gives FIFO-with-rate-limiting but has no priority axis, which §4.4
// requires.
type priorityHeap []*entry

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *priorityHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// queue is the unsynchronized priority queue backing the dispatcher; all
// locking lives in Dispatcher so this type stays a plain data structure.
type queue struct {
	h       priorityHeap
	nextSeq uint64
}

func newQueue() *queue {
	return &queue{}
}

// newQueueWithCapacity is newQueue but pre-allocates the heap's backing
// array. A non-positive capacity behaves like newQueue.
func newQueueWithCapacity(capacity int) *queue {
	if capacity <= 0 {
		return newQueue()
	}
	return &queue{h: make(priorityHeap, 0, capacity)}
}

func (q *queue) push(ev Event, priorityOverride *uint32) {
	p := ev.Priority()
	if priorityOverride != nil {
		p = *priorityOverride
	}
	e := &entry{ev: ev, priority: p, seq: q.nextSeq}
	q.nextSeq++
	heap.Push(&q.h, e)
}

func (q *queue) pop() (Event, bool) {
	if q.h.Len() == 0 {
		return nil, false
	}
	e := heap.Pop(&q.h).(*entry)
	return e.ev, true
}

func (q *queue) len() int {
	return q.h.Len()
}
