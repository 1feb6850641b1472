package core

import "time"

// ExecutionRecord captures a completed execution event for the bounded
// history kept by the pool and the scheduler.
type ExecutionRecord struct {
	TaskID     TaskID
	Source     string
	WorkerID   int
	State      HandleState
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}

// PoolStats represents runtime observability state for a worker pool.
type PoolStats struct {
	Name    string
	Workers int
	Queued  int
	Active  int
	Running bool
}

// SchedulerStats represents runtime observability state for a
// cooperative scheduler.
type SchedulerStats struct {
	Name    string
	Spawned uint64
	Ready   int
	Timers  int
	Waiting int
	Running bool
}
