package toc

import (
	"context"

	"github.com/mitchellh/copystructure"
	"github.com/puzpuzpuz/xsync/v4"
)

// future is a settle-once result shared by every caller that asks for the
// same work. The first caller to store it does the work; the rest wait.
type future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *future[T] {
	return &future[T]{done: make(chan struct{})}
}

func (f *future[T]) settle(v T, err error) {
	f.value, f.err = v, err
	close(f.done)
}

func (f *future[T]) wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// claim returns the future stored under key and whether the caller owns it
// (is responsible for settling it).
func claim[T any](m *xsync.Map[string, *future[T]], key string) (*future[T], bool) {
	f, loaded := m.LoadOrCompute(key, func() (*future[T], bool) {
		return newFuture[T](), false
	})
	return f, !loaded
}

// deepCopy returns an independent copy of v.
func deepCopy[T any](v T) (T, error) {
	c, err := copystructure.Copy(v)
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := c.(T)
	return out, nil
}
