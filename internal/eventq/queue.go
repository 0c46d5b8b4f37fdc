// Package eventq is the hand-off between the network goroutine and the
// consumer. The queue is unbounded: telemetry is low rate and bursts are
// absorbed by buffering rather than pushing back on the socket reader.
package eventq

import "sync"

// Queue is an unbounded FIFO with a readiness signal. Push never blocks.
// A consumer waits on Ready and then takes everything with Drain.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends v and wakes the consumer.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready receives a value whenever items may be waiting. A wake-up can be
// spurious (Drain may return nothing) but a push is never missed.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Drain removes and returns all queued items in push order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
