package core

import (
	"context"
	"sync"
)

// Lock is a mutual-exclusion lock with ownership checking. Acquire
// returns a Guard; only the Guard that currently holds the lock may
// release it, so a double release or a release through a stale guard is
// reported as ErrNotOwner instead of silently corrupting the lock.
//
// No fairness bound is guaranteed among contending acquirers, but
// well-behaved callers that always release make eventual progress.
type Lock struct {
	sem chan struct{}

	mu     sync.Mutex
	holder *Guard
}

// Guard represents one acquisition of a Lock.
type Guard struct {
	lock *Lock
}

// NewLock creates an unheld Lock.
func NewLock() *Lock {
	return &Lock{sem: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is free, then returns the holding
// guard. Cancelling ctx aborts the wait with ctx.Err().
func (l *Lock) Acquire(ctx context.Context) (*Guard, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	g := &Guard{lock: l}
	l.mu.Lock()
	l.holder = g
	l.mu.Unlock()
	return g, nil
}

// TryAcquire acquires the lock without blocking. It returns the guard
// and true on success, nil and false when the lock is held.
func (l *Lock) TryAcquire() (*Guard, bool) {
	select {
	case l.sem <- struct{}{}:
	default:
		return nil, false
	}
	g := &Guard{lock: l}
	l.mu.Lock()
	l.holder = g
	l.mu.Unlock()
	return g, true
}

// Held reports whether the lock is currently held.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder != nil
}

// With acquires the lock, runs fn, and releases on every exit path,
// including a panic inside fn.
func (l *Lock) With(ctx context.Context, fn func() error) error {
	g, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer g.Release()
	return fn()
}

// Release releases the lock. It returns ErrNotOwner when this guard is
// not the current holder.
func (g *Guard) Release() error {
	if g == nil || g.lock == nil {
		return ErrNotOwner
	}
	l := g.lock

	l.mu.Lock()
	if l.holder != g {
		l.mu.Unlock()
		return ErrNotOwner
	}
	// The guard owns the slot, so this receive never blocks. Freeing
	// the slot and clearing the holder under one critical section keeps
	// TryAcquire and Held consistent during a concurrent release.
	<-l.sem
	l.holder = nil
	l.mu.Unlock()

	return nil
}
