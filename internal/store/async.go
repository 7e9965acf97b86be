package store

import (
	"context"
)

// Future is the pending result of a store call started with Submit.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Submit runs fn on its own goroutine and returns immediately. The context
// passed to fn is ctx; cancelling it cancels the underlying query or write
// transaction, which then rolls back.
func Submit[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await waits for the result. If ctx ends first Await returns ctx.Err();
// the call itself keeps running under the context it was submitted with.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
