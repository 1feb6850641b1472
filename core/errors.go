package core

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned by Await and Get when the handle was
	// cancelled before or during execution.
	ErrCancelled = errors.New("taskexec: cancelled")

	// ErrShutdown is returned for work submitted after pool shutdown,
	// and for queued handles drained by Shutdown(wait=false).
	ErrShutdown = errors.New("taskexec: pool shut down")

	// ErrAlreadyResolved is returned by SetResult/SetError when the
	// future has already been resolved. This is a contract violation
	// and is reported at the violating call site, not deferred.
	ErrAlreadyResolved = errors.New("taskexec: future already resolved")

	// ErrNotOwner is returned by Guard.Release when the guard does not
	// currently hold the lock (double release or stale guard).
	ErrNotOwner = errors.New("taskexec: lock not held by this guard")

	// ErrTimeout is returned by AwaitTimeout when the timer wins the
	// race against the target handle's resolution.
	ErrTimeout = errors.New("taskexec: await timed out")
)

// WorkError wraps a failure produced by user-supplied work: either the
// error it returned or a recovered panic. It is stored on the handle and
// surfaces only when the handle is awaited; it never crashes a worker or
// the scheduler loop.
type WorkError struct {
	Err error
}

func (e *WorkError) Error() string {
	return fmt.Sprintf("taskexec: work failed: %v", e.Err)
}

func (e *WorkError) Unwrap() error {
	return e.Err
}

// WrapWorkError normalizes an error returned by user work into a handle
// resolution error. Cancellation sentinels pass through untouched so the
// handle lands in the Cancelled state.
func WrapWorkError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCancelled) {
		return ErrCancelled
	}
	var we *WorkError
	if errors.As(err, &we) {
		return err
	}
	return &WorkError{Err: err}
}

// PanicError converts a recovered panic value into a WorkError.
func PanicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return &WorkError{Err: fmt.Errorf("panic: %w", err)}
	}
	return &WorkError{Err: fmt.Errorf("panic: %v", recovered)}
}
