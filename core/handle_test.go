package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandle_Lifecycle(t *testing.T) {
	h := NewHandle()
	require.Equal(t, StatePending, h.State())
	require.False(t, h.Resolved())

	require.True(t, h.StartInternal())
	require.Equal(t, StateRunning, h.State())

	require.True(t, h.ResolveInternal("value", nil))
	require.Equal(t, StateCompleted, h.State())
	require.True(t, h.State().Terminal())

	v, err := h.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, "value", v)
}

func TestHandle_IDsMonotonic(t *testing.T) {
	a := NewHandle()
	b := NewHandle()
	require.Greater(t, uint64(b.ID()), uint64(a.ID()))
}

// A handle cancelled while Pending resolves immediately and never runs.
func TestHandle_CancelPending(t *testing.T) {
	h := NewHandle()
	h.Cancel()

	require.Equal(t, StateCancelled, h.State())
	require.True(t, h.CancelRequested())

	_, err := h.Await(context.Background())
	require.ErrorIs(t, err, ErrCancelled)

	// The owner must observe the cancellation and skip execution.
	require.False(t, h.StartInternal())
	require.NotEqual(t, StateRunning, h.State())
}

func TestHandle_CancelRunningInvokesHook(t *testing.T) {
	h := NewHandle()
	require.True(t, h.StartInternal())

	hookCalled := false
	h.SetCancelHookInternal(func() { hookCalled = true })

	h.Cancel()
	require.True(t, hookCalled)
	require.True(t, h.CancelRequested())

	// Cancellation is cooperative; the owner resolves when the work
	// actually stops.
	require.Equal(t, StateRunning, h.State())
	require.True(t, h.ResolveInternal(nil, ErrCancelled))
	require.Equal(t, StateCancelled, h.State())
}

// Cancel can land in the window between StartInternal and the owner
// installing its hook; installation must fire the pending request.
func TestHandle_CancelBeforeHookInstalled(t *testing.T) {
	h := NewHandle()
	require.True(t, h.StartInternal())
	h.Cancel()

	fired := false
	h.SetCancelHookInternal(func() { fired = true })
	require.True(t, fired)

	require.True(t, h.ResolveInternal(nil, ErrCancelled))
	require.Equal(t, StateCancelled, h.State())
}

// A late hook on a handle that was never cancelled must not fire.
func TestHandle_HookWithoutCancelDoesNotFire(t *testing.T) {
	h := NewHandle()
	require.True(t, h.StartInternal())

	fired := false
	h.SetCancelHookInternal(func() { fired = true })
	require.False(t, fired)
}

func TestHandle_CancelAfterResolvedIsNoOp(t *testing.T) {
	h := NewHandle()
	require.True(t, h.StartInternal())
	require.True(t, h.ResolveInternal(7, nil))

	h.Cancel()
	require.Equal(t, StateCompleted, h.State())

	v, err := h.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestHandle_ResolveStates(t *testing.T) {
	fail := NewHandle()
	require.True(t, fail.StartInternal())
	require.True(t, fail.ResolveInternal(nil, &WorkError{Err: errors.New("boom")}))
	require.Equal(t, StateFailed, fail.State())

	var we *WorkError
	_, err := fail.Await(context.Background())
	require.ErrorAs(t, err, &we)

	cancelled := NewHandle()
	require.True(t, cancelled.StartInternal())
	require.True(t, cancelled.ResolveInternal(nil, ErrCancelled))
	require.Equal(t, StateCancelled, cancelled.State())
}

func TestHandle_ResolveOnlyOnce(t *testing.T) {
	h := NewHandle()
	require.True(t, h.StartInternal())
	require.True(t, h.ResolveInternal(1, nil))
	require.False(t, h.ResolveInternal(2, nil))

	v, err := h.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestHandle_AwaitContextCancelled(t *testing.T) {
	h := NewHandle()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Await(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// Aborting the wait does not affect the handle.
	require.Equal(t, StatePending, h.State())
}
