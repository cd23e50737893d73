package core

import (
	"context"
	"sync"
)

// Future is the completion handle of a tracked job. It resolves exactly once, with a
// value or an error, and is safe to observe from any goroutine.
//
// Waiting on a Future with Get blocks the caller. Code running on the affinity
// goroutine should use Await instead, which keeps the dispatcher pumping.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// failedFuture returns a future that is already resolved with err.
func failedFuture[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}

// complete resolves the future. Only the owning job (or a chaining helper) calls it;
// the once guard makes a second resolution a no-op rather than a panic.
func (f *Future[T]) complete(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed when the future resolves.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsCompleted reports whether the future has resolved.
func (f *Future[T]) IsCompleted() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the resolved value and error without blocking. It returns
// ErrFuturePending while the job has not finished.
func (f *Future[T]) Result() (T, error) {
	if !f.IsCompleted() {
		var zero T
		return zero, ErrFuturePending
	}
	return f.value, f.err
}

// Err returns the failure of a resolved future, ErrFuturePending otherwise.
func (f *Future[T]) Err() error {
	_, err := f.Result()
	return err
}

// Get blocks until the future resolves or ctx is done. It does not pump any loop.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// chainFuture resolves dst with src's outcome once src completes. Used by the unwrap
// overloads where the job itself produces another future. If stop closes first, dst
// is left unresolved, like any future abandoned by a forced queue clear.
func chainFuture[T any](dst, src *Future[T], stop <-chan struct{}) {
	if src.IsCompleted() {
		dst.complete(src.value, src.err)
		return
	}
	go func() {
		select {
		case <-src.done:
			dst.complete(src.value, src.err)
		case <-stop:
		}
	}()
}
