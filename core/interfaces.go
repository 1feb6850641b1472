package core

import (
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling work panics
// =============================================================================

// PanicHandler is called when user-supplied work panics during
// execution. The panic is always recovered and stored on the handle as
// a WorkError; this hook exists for logging and crash reporting on top
// of that.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when work panics.
	//
	// Parameters:
	// - source: the component where the panic occurred (pool or scheduler name)
	// - workerID: the worker that executed the work (-1 for the scheduler loop)
	// - taskID: the ID of the handle whose work panicked
	// - panicInfo: the recovered panic value
	// - stackTrace: the stack trace at the time of panic
	HandlePanic(source string, workerID int, taskID TaskID, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic.
func (h *DefaultPanicHandler) HandlePanic(source string, workerID int, taskID TaskID, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("work panicked",
		F("source", source),
		F("worker", workerID),
		F("task", taskID.String()),
		F("panic", fmt.Sprintf("%v", panicInfo)),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting execution performance.
type Metrics interface {
	// RecordTaskDuration records how long a unit of work took to execute,
	// labeled with its terminal state.
	RecordTaskDuration(source string, state HandleState, duration time.Duration)

	// RecordTaskFailure records that work resolved as Failed or Cancelled.
	RecordTaskFailure(source string, state HandleState)

	// RecordQueueDepth records the current work-queue depth.
	RecordQueueDepth(source string, depth int)

	// RecordTaskRejected records that a submission was rejected
	// (e.g., after shutdown).
	RecordTaskRejected(source string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(source string, state HandleState, duration time.Duration) {}

// RecordTaskFailure is a no-op.
func (m *NilMetrics) RecordTaskFailure(source string, state HandleState) {}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(source string, depth int) {}

// RecordTaskRejected is a no-op.
func (m *NilMetrics) RecordTaskRejected(source string, reason string) {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected submissions
// =============================================================================

// RejectedTaskHandler is called when a submission is rejected, which
// happens when the pool is shutting down or already shut down.
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	// HandleRejectedTask is called with the rejecting component's name
	// and the rejection reason (e.g., "shutdown").
	HandleRejectedTask(source string, reason string)
}

// DefaultRejectedTaskHandler logs rejected submissions through a Logger.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

// HandleRejectedTask logs the rejection.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(source string, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Warn("submission rejected", F("source", source), F("reason", reason))
}
