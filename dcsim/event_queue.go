package dcsim

import (
	"container/heap"
	"sync"
)

// eventHeap implements container/heap.Interface, ordering by timestamp with
// a FIFO tie-break on the insertion sequence number. See the canonical
// example at https://pkg.go.dev/container/heap#example-package-IntHeap.
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(*Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// EventQueue is a time-ordered priority queue with a blocking consumer
// contract: Pop blocks while the queue is empty and not terminated. A
// single mutex guards the heap and the push/pop counters; a condition
// variable signals non-emptiness and termination, mirroring the
// sync.Mutex-guarded Recorder pattern in the teacher's cmd/observe.go —
// generalized here to support genuine multiple producers and the blocking
// consumer spec.md §4.2 requires.
type EventQueue struct {
	mu         sync.Mutex
	cond       *sync.Cond
	heap       eventHeap
	terminated bool

	nextSeq     uint64
	pushedCount uint64
	poppedCount uint64
}

// NewEventQueue creates an empty, non-terminated EventQueue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{heap: make(eventHeap, 0)}
	q.cond = sync.NewCond(&q.mu)
	heap.Init(&q.heap)
	return q
}

// Push adds e to the queue, assigning it the next FIFO tie-break sequence
// number, and wakes one waiting consumer. O(log n).
func (q *EventQueue) Push(e *Event) {
	q.mu.Lock()
	e.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.heap, e)
	q.pushedCount++
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks while the queue is empty and not terminated. It returns the
// earliest event and true when one is available, or (nil, false) once
// Terminate has been called and no events remain.
func (q *EventQueue) Pop() (*Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.heap.Len() == 0 {
		if q.terminated {
			return nil, false
		}
		q.cond.Wait()
	}
	e := heap.Pop(&q.heap).(*Event)
	q.poppedCount++
	return e, true
}

// Terminate is idempotent and wakes all blocked consumers. Consumers
// already holding reachable events still drain them; Pop only returns
// (nil, false) once the heap is empty.
func (q *EventQueue) Terminate() {
	q.mu.Lock()
	q.terminated = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Remove filters out every event matching predicate and reports how many
// were removed. Neither the engine nor the data center calls it; the data
// center instead ignores a stale MigrationComplete for a departed VM.
func (q *EventQueue) Remove(predicate func(*Event) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.heap[:0]
	removed := 0
	for _, e := range q.heap {
		if predicate(e) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	q.heap = kept
	heap.Init(&q.heap)
	return removed
}

// Counts returns (pushed, popped, size) under a single critical section.
func (q *EventQueue) Counts() (pushed, popped uint64, size int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushedCount, q.poppedCount, q.heap.Len()
}

// Len reports the current queue size.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}
