package client

import (
	"context"
)

// Future is the single-resolution result of an asynchronously dispatched
// operation. It is resolved exactly once, by the goroutine executing the
// operation.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// resolve publishes the result and wakes all awaiters. Must be called
// exactly once.
func (f *Future[T]) resolve(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Resolved reports whether the future already carries a result.
func (f *Future[T]) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future resolves or ctx is done.
// Cancelling ctx abandons the wait only; the dispatched operation is not
// cancelled and still runs to completion against the engine.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
