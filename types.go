package taskexec

import "github.com/DevAlishar/taskexec/core"

// Re-export commonly used types from the core package for convenience.
// This allows users to import only the taskexec package for most use cases.

// Handle is a reference to a unit of asynchronous or parallel work
type Handle = core.Handle

// TaskID uniquely identifies a unit of submitted work
type TaskID = core.TaskID

// HandleState is the lifecycle state of a Handle
type HandleState = core.HandleState

// Future is a one-shot, write-once/read-many completion signal
type Future = core.Future

// Lock is a mutual-exclusion lock with ownership checking
type Lock = core.Lock

// Guard represents one acquisition of a Lock
type Guard = core.Guard

// WorkFunc is the unit of blocking work executed by a worker pool
type WorkFunc = core.WorkFunc

// Scheduler runs suspendable units cooperatively on a single logical thread
type Scheduler = core.Scheduler

// SchedulerConfig holds the optional hooks for a Scheduler
type SchedulerConfig = core.SchedulerConfig

// TaskContext is the suspension-point API handed to each cooperative unit
type TaskContext = core.TaskContext

// CoroutineFunc is a cooperative unit of work
type CoroutineFunc = core.CoroutineFunc

// WorkError wraps a failure produced by user-supplied work
type WorkError = core.WorkError

// Handle lifecycle states
const (
	StatePending   = core.StatePending
	StateRunning   = core.StateRunning
	StateCompleted = core.StateCompleted
	StateFailed    = core.StateFailed
	StateCancelled = core.StateCancelled
)

// Error kinds surfaced by Await and Get
var (
	ErrCancelled       = core.ErrCancelled
	ErrShutdown        = core.ErrShutdown
	ErrAlreadyResolved = core.ErrAlreadyResolved
	ErrNotOwner        = core.ErrNotOwner
	ErrTimeout         = core.ErrTimeout
)

// Convenience constructors re-exported from core
var (
	NewFuture    = core.NewFuture
	NewLock      = core.NewLock
	NewScheduler = core.NewScheduler
)
