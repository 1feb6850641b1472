package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// TaskID uniquely identifies a unit of submitted work.
// IDs are assigned monotonically per process.
type TaskID uint64

var nextTaskID atomic.Uint64

// GenerateTaskID returns the next monotonic task ID.
func GenerateTaskID() TaskID {
	return TaskID(nextTaskID.Add(1))
}

func (id TaskID) String() string {
	return fmt.Sprintf("task-%d", uint64(id))
}

// HandleState is the lifecycle state of a Handle. Transitions are
// monotonic: no state is ever re-entered.
type HandleState int32

const (
	StatePending HandleState = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s HandleState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is a resolution state.
func (s HandleState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Handle is a reference to a unit of asynchronous or parallel work and
// its eventual outcome. Handles are created by a WorkerPool or a
// Scheduler on submission; callers hold only a reference and wait on it
// through Await.
type Handle struct {
	id  TaskID
	fut *Future

	mu         sync.Mutex
	state      HandleState
	cancelHook func()

	cancelRequested atomic.Bool
}

// NewHandle creates a Pending handle with a fresh task ID. It is used by
// the executing components (pool, scheduler); most callers receive
// handles from Submit or Spawn instead.
func NewHandle() *Handle {
	return &Handle{id: GenerateTaskID(), fut: NewFuture()}
}

// ID returns the handle's task ID.
func (h *Handle) ID() TaskID {
	return h.id
}

// State returns the current lifecycle state.
func (h *Handle) State() HandleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Resolved reports whether the handle has reached a terminal state.
func (h *Handle) Resolved() bool {
	return h.fut.Resolved()
}

// Future returns the completion signal backing this handle's result
// slot. Multiple consumers may Get on it; all observe the same outcome.
func (h *Handle) Future() *Future {
	return h.fut
}

// Await blocks until the handle resolves, then returns the stored value
// or error. Calling Await after resolution returns the cached outcome
// immediately. Cancelling ctx aborts only the wait, not the work.
func (h *Handle) Await(ctx context.Context) (any, error) {
	return h.fut.Get(ctx)
}

// Cancel requests cancellation. A Pending handle resolves immediately
// with ErrCancelled and is guaranteed never to run. A Running handle is
// cancelled cooperatively through its owner's hook (per-task context for
// pool work, suspension-point injection for scheduler units); work that
// defines no checkpoint completes normally. Resolved handles are
// untouched.
func (h *Handle) Cancel() {
	h.mu.Lock()
	switch h.state {
	case StatePending:
		h.state = StateCancelled
		h.cancelRequested.Store(true)
		h.mu.Unlock()
		_ = h.fut.SetError(ErrCancelled)
		return
	case StateRunning:
		h.cancelRequested.Store(true)
		hook := h.cancelHook
		h.mu.Unlock()
		if hook != nil {
			hook()
		}
		return
	default:
		h.mu.Unlock()
	}
}

// CancelRequested reports whether Cancel has been called. Long-running
// work can poll this as an explicit cancellation checkpoint.
func (h *Handle) CancelRequested() bool {
	return h.cancelRequested.Load()
}

// StartInternal transitions Pending -> Running. It returns false when
// the handle was cancelled (or otherwise resolved) before starting, in
// which case the owner must skip execution.
func (h *Handle) StartInternal() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StatePending {
		return false
	}
	h.state = StateRunning
	return true
}

// SetCancelHookInternal installs the owner's cooperative cancel hook,
// invoked when Cancel is called on a Running handle. Passing nil clears
// the hook. A cancel request that landed before the hook was installed
// fires it immediately, so the window between StartInternal and hook
// installation cannot swallow a Cancel.
func (h *Handle) SetCancelHookInternal(hook func()) {
	h.mu.Lock()
	h.cancelHook = hook
	fire := hook != nil && h.state == StateRunning && h.cancelRequested.Load()
	h.mu.Unlock()

	if fire {
		hook()
	}
}

// ResolveInternal resolves the handle exactly once: a nil error yields
// Completed, ErrCancelled yields Cancelled, anything else yields Failed.
// It returns false if the handle was already resolved.
func (h *Handle) ResolveInternal(v any, err error) bool {
	h.mu.Lock()
	if h.state.Terminal() {
		h.mu.Unlock()
		return false
	}
	switch {
	case err == nil:
		h.state = StateCompleted
	case errors.Is(err, ErrCancelled):
		h.state = StateCancelled
	default:
		h.state = StateFailed
	}
	h.cancelHook = nil
	h.mu.Unlock()

	if err == nil {
		_ = h.fut.SetResult(v)
	} else {
		_ = h.fut.SetError(err)
	}
	return true
}
