// Package future holds the completion handle of work running on its own
// goroutine.
package future

import (
	"context"
	"fmt"
)

// Future is the eventual result of a function. It completes once.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// New runs fn on a new goroutine. A panic in fn completes the Future with
// an error instead of crashing the process.
func New[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("panic: %v", r)
			}
		}()
		f.value, f.err = fn()
	}()
	return f
}

// Resolved returns a Future that has already completed with v.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: v}
	close(f.done)
	return f
}

// Rejected returns a Future that has already failed with err.
func Rejected[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.value, f.err
}

// AwaitContext waits for completion or for ctx to end, whichever is first.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) Done() <-chan struct{} { return f.done }

func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
