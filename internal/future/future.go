// Package future provides a one-shot promise that bridges callback-style
// completion into a blocking, optionally timed-out read.
package future

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTimeout is returned by AwaitTimeout when the deadline passes before
// a terminal write. The producer keeps running; only the wait is abandoned.
var ErrTimeout = errors.New("future: await timed out")

// ExecutionError wraps the failure stored by Fail when it is handed back
// to an awaiting consumer.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Future is a single-slot container with exactly one terminal write,
// either Resolve or Fail. The first write wins; later writes are ignored.
type Future[T any] struct {
	mu      sync.Mutex
	done    chan struct{}
	val     T
	err     error
	settled bool
}

func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Go runs fn on its own goroutine and settles the returned future with
// its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := New[T]()
	go func() {
		v, err := fn()
		if err != nil {
			f.Fail(err)
			return
		}
		f.Resolve(v)
	}()
	return f
}

// Resolve stores the value and wakes all waiters. Ignored if the future
// is already settled.
func (f *Future[T]) Resolve(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return
	}
	f.val = v
	f.settled = true
	close(f.done)
}

// Fail stores the error and wakes all waiters. Ignored if the future is
// already settled.
func (f *Future[T]) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return
	}
	if err == nil {
		err = errors.New("future: failed with nil error")
	}
	f.err = err
	f.settled = true
	close(f.done)
}

// Await blocks until the future settles and returns the value, or the
// stored failure wrapped in an ExecutionError.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.result()
}

// AwaitTimeout blocks at most d. On expiry it returns ErrTimeout without
// cancelling the producer, which may still settle the future later.
func (f *Future[T]) AwaitTimeout(d time.Duration) (T, error) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-f.done:
		return f.result()
	case <-t.C:
		var zero T
		return zero, ErrTimeout
	}
}

// Done reports whether a terminal write has occurred.
func (f *Future[T]) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Cancel always reports false: the underlying operation is not
// cancellable once dispatched.
func (f *Future[T]) Cancel() bool { return false }

func (f *Future[T]) result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		var zero T
		return zero, &ExecutionError{Err: f.err}
	}
	return f.val, nil
}
