package registry

import "sync"

// PendingQueue is an ordered set of keys waiting for an external refresh.
// Pushing a key that is already queued is a no-op.
//
// When a caller holds an entry lock and touches a queue, the order is always
// entry first, then queue.
type PendingQueue[K comparable] struct {
	mu    sync.Mutex
	order []K
	set   map[K]struct{}
}

// NewPendingQueue creates an empty queue.
func NewPendingQueue[K comparable]() *PendingQueue[K] {
	return &PendingQueue[K]{set: make(map[K]struct{})}
}

// Push enqueues k and reports whether it was newly added.
func (q *PendingQueue[K]) Push(k K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.set[k]; ok {
		return false
	}
	q.set[k] = struct{}{}
	q.order = append(q.order, k)
	return true
}

// Resolve removes k and reports whether it was queued.
func (q *PendingQueue[K]) Resolve(k K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.set[k]; !ok {
		return false
	}
	delete(q.set, k)
	for i, v := range q.order {
		if v == k {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether k is queued.
func (q *PendingQueue[K]) Contains(k K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.set[k]
	return ok
}

// Pending returns the queued keys in insertion order.
func (q *PendingQueue[K]) Pending() []K {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]K, len(q.order))
	copy(out, q.order)
	return out
}

// Len returns the number of queued keys.
func (q *PendingQueue[K]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}
