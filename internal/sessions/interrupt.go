package sessions

import (
	"context"
	"sync"
)

// InterruptQueue collects values produced by background work so the next turn
// can drain them without blocking the current one. Producers that return
// ok=false or panic contribute nothing.
type InterruptQueue[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending int
	ready   []T
}

func NewInterruptQueue[T any]() *InterruptQueue[T] {
	q := &InterruptQueue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue starts produce on its own goroutine and records its value once it
// settles successfully.
func (q *InterruptQueue[T]) Enqueue(produce func() (T, bool)) {
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()

	go func() {
		var value T
		ok := false
		defer func() {
			_ = recover()
			q.mu.Lock()
			q.pending--
			if ok {
				q.ready = append(q.ready, value)
			}
			q.cond.Broadcast()
			q.mu.Unlock()
		}()
		value, ok = produce()
	}()
}

// Drain removes and returns all settled values. Calling it again without new
// settlements returns nothing.
func (q *InterruptQueue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.ready
	q.ready = nil
	return out
}

// Flush waits for all pending producers (or ctx expiry) and then drains.
func (q *InterruptQueue[T]) Flush(ctx context.Context) []T {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	for q.pending > 0 && ctx.Err() == nil {
		q.cond.Wait()
	}
	out := q.ready
	q.ready = nil
	q.mu.Unlock()
	return out
}

// Pending returns the number of producers that have not settled yet.
func (q *InterruptQueue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}
