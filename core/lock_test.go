package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLock_AcquireRelease(t *testing.T) {
	l := NewLock()
	require.False(t, l.Held())

	g, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, l.Held())

	require.NoError(t, g.Release())
	require.False(t, l.Held())
}

func TestLock_MutualExclusion(t *testing.T) {
	l := NewLock()

	const goroutines = 10
	const iterations = 100

	counter := 0
	errs := make(chan error, goroutines*iterations)
	var wg sync.WaitGroup
	for _i := 0; _i < goroutines; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _i := 0; _i < iterations; _i++ {
				errs <- l.With(context.Background(), func() error {
					counter++
					return nil
				})
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, goroutines*iterations, counter)
	require.False(t, l.Held())
}

func TestLock_ReleaseByNonOwner(t *testing.T) {
	l := NewLock()

	g1, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, g1.Release())

	// Double release through the same guard.
	require.ErrorIs(t, g1.Release(), ErrNotOwner)

	// Stale guard after the lock changed hands.
	g2, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.ErrorIs(t, g1.Release(), ErrNotOwner)
	require.True(t, l.Held())
	require.NoError(t, g2.Release())

	var nilGuard *Guard
	require.ErrorIs(t, nilGuard.Release(), ErrNotOwner)
}

func TestLock_TryAcquire(t *testing.T) {
	l := NewLock()

	g, ok := l.TryAcquire()
	require.True(t, ok)
	require.NotNil(t, g)

	g2, ok := l.TryAcquire()
	require.False(t, ok)
	require.Nil(t, g2)

	require.NoError(t, g.Release())

	g3, ok := l.TryAcquire()
	require.True(t, ok)
	require.NoError(t, g3.Release())
}

func TestLock_AcquireContextCancelled(t *testing.T) {
	l := NewLock()

	g, err := l.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The failed acquire must not have disturbed the holder.
	require.True(t, l.Held())
	require.NoError(t, g.Release())
}

// Two goroutines releasing the same guard: exactly one succeeds, the
// other observes ErrNotOwner, and the lock ends up free.
func TestLock_ConcurrentDoubleRelease(t *testing.T) {
	l := NewLock()
	g, err := l.Acquire(context.Background())
	require.NoError(t, err)

	errs := make(chan error, 2)
	for _i := 0; _i < 2; _i++ {
		go func() { errs <- g.Release() }()
	}

	var succeeded, notOwner int
	for _i := 0; _i < 2; _i++ {
		switch err := <-errs; {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrNotOwner):
			notOwner++
		default:
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, notOwner)
	require.False(t, l.Held())
}

// A TryAcquire racing a Release sees the lock either held or free,
// never a half-released state where the slot is still occupied after
// the holder is gone.
func TestLock_TryAcquireDuringRelease(t *testing.T) {
	l := NewLock()

	for _i := 0; _i < 200; _i++ {
		g, err := l.Acquire(context.Background())
		require.NoError(t, err)

		released := make(chan error, 1)
		go func() { released <- g.Release() }()

		deadline := time.Now().Add(time.Second)
		for {
			if g2, ok := l.TryAcquire(); ok {
				require.NoError(t, g2.Release())
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("TryAcquire kept failing after the holder released")
			}
		}
		require.NoError(t, <-released)
	}
}

// With releases on every exit path, including a panic inside fn.
func TestLock_WithReleasesOnPanic(t *testing.T) {
	l := NewLock()

	func() {
		defer func() {
			require.NotNil(t, recover())
		}()
		_ = l.With(context.Background(), func() error {
			panic("inside critical section")
		})
	}()

	require.False(t, l.Held())
	g, ok := l.TryAcquire()
	require.True(t, ok)
	require.NoError(t, g.Release())
}
