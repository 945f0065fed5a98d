// Package queue provides the FIFO that hands pending export jobs to workers.
//
// The queue is unbounded: one run holds one job per team, so backpressure
// is never needed. Closing the queue is how cancellation reaches workers.
package queue

import (
	"sync"

	"github.com/okian/roster/pkg/metrics"
)

const defaultInitialCapacity = 16

// InMemoryQueue is a mutex-guarded FIFO with a closed flag.
type InMemoryQueue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool

	trackMetrics bool
}

// NewInMemoryQueue creates an empty, open queue.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	o := options{initialCapacity: defaultInitialCapacity, trackMetrics: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &InMemoryQueue[T]{
		items:        make([]T, 0, o.initialCapacity),
		trackMetrics: o.trackMetrics,
	}
}

// Enqueue appends item. It returns false once the queue is closed.
func (q *InMemoryQueue[T]) Enqueue(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		if q.trackMetrics {
			metrics.RecordErrorByComponent("queue", "closed")
		}
		return false
	}
	q.items = append(q.items, item)
	if q.trackMetrics {
		metrics.RecordQueueEnqueue()
		metrics.AddQueueSize(1)
	}
	return true
}

// TryDequeue pops the head if admit accepts it. admit runs while the queue
// lock is held, so a decision made there cannot interleave with Close or
// with another dequeue. A refused head stays queued. admit may be nil.
func (q *InMemoryQueue[T]) TryDequeue(admit func(T) bool) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.closed || q.head == len(q.items) {
		return zero, false
	}
	item := q.items[q.head]
	if admit != nil && !admit(item) {
		return zero, false
	}
	q.items[q.head] = zero
	q.head++
	q.compact()
	if q.trackMetrics {
		metrics.RecordQueueDequeue()
		metrics.AddQueueSize(-1)
	}
	return item, true
}

// Len returns the number of queued items.
func (q *InMemoryQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close stops all further enqueues and dequeues and returns the items that
// were never dequeued, in order. Closing twice returns nil the second time.
func (q *InMemoryQueue[T]) Close() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	rest := append([]T(nil), q.items[q.head:]...)
	q.items = nil
	q.head = 0
	if q.trackMetrics && len(rest) > 0 {
		metrics.AddQueueSize(-len(rest))
		metrics.RecordQueueDropped(len(rest))
	}
	return rest
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// compact reclaims the consumed prefix once it dominates the slice.
func (q *InMemoryQueue[T]) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head > defaultInitialCapacity && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}
