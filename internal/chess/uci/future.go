package uci

import (
	"context"
	"sync"
)

// Future is the pending result of one engine request. It resolves exactly
// once; later resolutions are ignored.
type Future[T any] struct {
	done     chan struct{}
	once     sync.Once
	val      T
	err      error
	onCancel func(error)
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.once.Do(func() {
		f.val = v
		f.err = err
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks for the result. When ctx ends first the request is abandoned:
// the engine is told to stop and the future resolves with ctx's error.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
	}
	if f.onCancel != nil {
		f.onCancel(ctx.Err())
	}
	var zero T
	f.resolve(zero, ctx.Err())
	<-f.done
	return f.val, f.err
}
