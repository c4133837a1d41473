package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Bounded is a FIFO queue with a fixed capacity. Push never blocks: when the
// queue is full the oldest element is discarded to make room.
type Bounded[T any] struct {
	items   chan T
	pushMu  sync.Mutex
	dropped atomic.Uint64
}

func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{items: make(chan T, capacity)}
}

// Push enqueues item and reports whether an older element was dropped.
func (q *Bounded[T]) Push(item T) bool {
	q.pushMu.Lock()
	defer q.pushMu.Unlock()

	dropped := false
	for {
		select {
		case q.items <- item:
			return dropped
		default:
		}
		select {
		case <-q.items:
			q.dropped.Add(1)
			dropped = true
		default:
		}
	}
}

// Pop waits up to wait for an element. It returns false on timeout or when ctx is done.
func (q *Bounded[T]) Pop(ctx context.Context, wait time.Duration) (T, bool) {
	select {
	case item := <-q.items:
		return item, true
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case item := <-q.items:
		return item, true
	case <-timer.C:
	case <-ctx.Done():
	}
	var zero T
	return zero, false
}

// Drain discards everything currently queued and returns how many elements were removed.
func (q *Bounded[T]) Drain() int {
	n := 0
	for {
		select {
		case <-q.items:
			n++
		default:
			return n
		}
	}
}

func (q *Bounded[T]) Len() int {
	return len(q.items)
}

func (q *Bounded[T]) Cap() int {
	return cap(q.items)
}

func (q *Bounded[T]) Dropped() uint64 {
	return q.dropped.Load()
}
