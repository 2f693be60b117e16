package hostlink

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Future is the deferred result of a call to the host.
type Future[T any] struct {
	done    chan struct{}
	once    sync.Once
	value   T
	err     error
	release func()
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{
		done: make(chan struct{}),
	}
}

func completedFuture[T any](value T, err error) *Future[T] {
	f := newFuture[T]()
	f.complete(value, err)
	return f
}

// complete sets the result. Only the first completion counts.
func (f *Future[T]) complete(value T, err error) bool {
	completed := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
		completed = true
	})
	return completed
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx is done.
//
// If ctx is done first, the call is abandoned: a reply arriving later is ignored.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		if f.release != nil {
			f.release()
		}
		var zero T
		return zero, errors.WithStack(ctx.Err())
	}
}

// OnComplete calls fn with the result once it is available.
func (f *Future[T]) OnComplete(fn func(value T, err error)) {
	go func() {
		<-f.done
		fn(f.value, f.err)
	}()
}
