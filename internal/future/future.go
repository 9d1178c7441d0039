// Package future provides a value that is resolved exactly once and can be
// awaited by any number of goroutines.
package future

import (
	"context"
	"sync"
)

// Future holds the eventual result of an asynchronous operation.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New returns an unresolved future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve sets the result. Only the first call has any effect; it reports
// whether this call resolved the future.
func (f *Future[T]) Resolve(v T, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.value, f.err = v, err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future resolves or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
