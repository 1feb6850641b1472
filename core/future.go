package core

import (
	"context"
	"sync"
)

// Future is a one-shot completion cell with single-producer,
// multi-consumer semantics. It is resolved exactly once with either a
// value or an error; every Get after resolution observes the same
// outcome.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	resolved  bool
	value     any
	err       error
	listeners []func()
}

// NewFuture creates an unresolved Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// SetResult resolves the future with a value. A second resolution of any
// kind returns ErrAlreadyResolved.
func (f *Future) SetResult(v any) error {
	return f.resolve(v, nil)
}

// SetError resolves the future with an error. Mutually exclusive with
// SetResult; a second resolution returns ErrAlreadyResolved.
func (f *Future) SetError(err error) error {
	return f.resolve(nil, err)
}

func (f *Future) resolve(v any, err error) error {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return ErrAlreadyResolved
	}
	f.resolved = true
	f.value = v
	f.err = err
	listeners := f.listeners
	f.listeners = nil
	close(f.done)
	f.mu.Unlock()

	// Listeners run outside the lock; each fires exactly once.
	for _, fn := range listeners {
		fn()
	}
	return nil
}

// Get blocks until the future is resolved, then returns the stored value
// or error. Repeated calls return the cached outcome. Cancelling ctx
// aborts the wait with ctx.Err() without affecting the future itself.
func (f *Future) Get(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.peek()
	default:
	}

	select {
	case <-f.done:
		return f.peek()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed on resolution.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Resolved reports whether the future has been resolved.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// peek returns the stored outcome. Callers must ensure the future is
// resolved.
func (f *Future) peek() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// subscribe registers fn to run once on resolution. If the future is
// already resolved, fn runs immediately on the calling goroutine.
func (f *Future) subscribe(fn func()) {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		fn()
		return
	}
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}
