package command

import (
	"errors"
	"sync"
)

// ErrClosed reports an enqueue after the consumer shut the queue down.
// This is a configuration-level failure, not a runtime condition.
var ErrClosed = errors.New("command queue closed")

// Queue is an unbounded multi-producer, single-consumer FIFO. Enqueue
// never blocks; relative order from a single producer is always
// preserved.
type Queue struct {
	mu     sync.Mutex
	items  []Command
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends cmd. It fails only when the queue has been closed.
func (q *Queue) Enqueue(cmd Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, cmd)
	return nil
}

// Drain removes and returns every queued command in FIFO order. Only
// the single consumer may call it.
func (q *Queue) Drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops all queued commands without applying them and returns
// how many were dropped. This is the only silent-drop path.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Close marks the queue closed. Subsequent enqueues fail with
// ErrClosed; already-queued commands remain drainable.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
