// # internal/data/queue/bounded.go
package queue

import (
	"context"
	"io"
	"sync"
	"time"
)

// Bounded is a fixed-capacity FIFO whose producers never wait. Offers to a
// full or closed queue are refused.
type Bounded[T any] struct {
	items chan T

	mu     sync.RWMutex
	closed bool
}

func NewBounded[T any](capacity int) *Bounded[T] {
	return &Bounded[T]{items: make(chan T, max(capacity, 1))}
}

// Offer reports whether item was queued.
func (q *Bounded[T]) Offer(item T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.items <- item:
		return true
	default:
		return false
	}
}

// Drain waits up to wait for one item, then takes whatever else is ready up
// to limit. After Close it keeps returning queued items and reports io.EOF
// with the batch that empties the queue.
func (q *Bounded[T]) Drain(ctx context.Context, limit int, wait time.Duration) ([]T, error) {
	first, ok, err := q.first(ctx, wait)
	if !ok {
		return nil, err
	}
	batch := append(make([]T, 0, max(limit, 1)), first)
	for len(batch) < limit {
		select {
		case item, open := <-q.items:
			if !open {
				return batch, io.EOF
			}
			batch = append(batch, item)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

func (q *Bounded[T]) first(ctx context.Context, wait time.Duration) (item T, ok bool, err error) {
	if wait <= 0 {
		select {
		case item, ok = <-q.items:
			return item, ok, eofUnless(ok)
		default:
			return item, false, ctx.Err()
		}
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case item, ok = <-q.items:
		return item, ok, eofUnless(ok)
	case <-ctx.Done():
		return item, false, ctx.Err()
	case <-t.C:
		return item, false, nil
	}
}

func eofUnless(open bool) error {
	if open {
		return nil
	}
	return io.EOF
}

// Close refuses further offers. Items already queued can still be drained.
func (q *Bounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
}

func (q *Bounded[T]) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}
