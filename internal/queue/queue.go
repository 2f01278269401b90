package queue

import (
	"sync"
)

// Queue is a generic thread-safe FIFO with a fixed capacity. Pushing onto a full queue
// evicts the oldest items.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	evicted  uint64
}

// New creates a new empty queue holding at most capacity items. A capacity below one
// is treated as one.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends items, evicting from the front as needed.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	if over := len(q.items) - q.capacity; over > 0 {
		q.evicted += uint64(over)
		q.items = append(q.items[:0], q.items[over:]...)
	}
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Evicted returns how many items have been pushed out so far.
func (q *Queue[T]) Evicted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}

// Snapshot returns a copy of the items, oldest first.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

// Clear removes all items from the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}
