package backend

import (
	"context"
	"sync"
)

// Call is the handle of a backend request that completes later. The worker
// polls it from task ticks; Resolve may be called from any goroutine.
type Call[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// NewCall returns an unresolved call.
func NewCall[T any]() *Call[T] {
	return &Call[T]{done: make(chan struct{})}
}

// Resolved returns a call that is already complete.
func Resolved[T any](v T, err error) *Call[T] {
	c := NewCall[T]()
	c.Resolve(v, err)

	return c
}

// Failed returns a call that already failed with err.
func Failed[T any](err error) *Call[T] {
	var zero T
	return Resolved(zero, err)
}

// Resolve completes the call. Only the first resolution is kept.
func (c *Call[T]) Resolve(v T, err error) {
	c.once.Do(func() {
		c.value = v
		c.err = err
		close(c.done)
	})
}

// Done reports whether the call completed.
func (c *Call[T]) Done() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Poll returns the result and true if the call completed.
func (c *Call[T]) Poll() (T, bool, error) {
	if !c.Done() {
		var zero T
		return zero, false, nil
	}

	return c.value, true, c.err
}

// Wait blocks until the call completes or ctx is done.
func (c *Call[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
