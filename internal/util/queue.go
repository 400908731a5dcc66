package util

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrQueueClosed = errors.New("queue closed")
var ErrQueueTimeout = errors.New("queue pop timeout")
var ErrQueueEmpty = errors.New("queue empty (non-blocking pop)")
var ErrQueueCtxDone = errors.New("queue ctx done")

// Queue is a generic, thread-safe queue based on chan.
type Queue[T any] struct {
	mu     sync.Mutex
	ch     chan T
	done   chan struct{}
	closed bool
}

// NewQueue creates a new Queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// Push adds an item to the queue, blocking while the queue is full.
// Returns ErrQueueClosed once the queue is closed.
func (q *Queue[T]) Push(val T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	ch, done := q.ch, q.done
	q.mu.Unlock()

	select {
	case ch <- val:
		return nil
	case <-done:
		return ErrQueueClosed
	}
}

// Pop tries to get an item from the queue.
// timeout=0: block until an item arrives, the queue closes or ctx is done
// timeout<0: non-blocking
// timeout>0: wait up to timeout duration
func (q *Queue[T]) Pop(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	q.mu.Lock()
	if q.closed {
		// drain remaining items before reporting closed
		select {
		case v := <-q.ch:
			q.mu.Unlock()
			return v, nil
		default:
			q.mu.Unlock()
			return zero, ErrQueueClosed
		}
	}
	ch, done := q.ch, q.done
	q.mu.Unlock()

	if timeout < 0 {
		select {
		case v := <-ch:
			return v, nil
		default:
			return zero, ErrQueueEmpty
		}
	}

	if timeout == 0 {
		select {
		case v := <-ch:
			return v, nil
		case <-done:
			return zero, ErrQueueClosed
		case <-ctx.Done():
			return zero, ErrQueueCtxDone
		}
	}

	select {
	case v := <-ch:
		return v, nil
	case <-done:
		return zero, ErrQueueClosed
	case <-time.After(timeout):
		return zero, ErrQueueTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Clear discards everything currently buffered. Blocked Pop calls are not
// woken; they pick up the next pushed item.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}

// Close closes the queue permanently. Pending items can still be popped
// non-blockingly; all Push calls fail afterwards.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	q.mu.Unlock()
}
