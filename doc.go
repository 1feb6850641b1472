// Package taskexec provides a small concurrent task-execution core for Go.
//
// Two execution models coexist and are deliberately kept apart:
//
// WorkerPool runs independent blocking work in parallel across a fixed
// number of worker goroutines pulling from a shared FIFO queue.
//
// Scheduler runs suspendable units cooperatively on a single logical
// thread, multiplexing on timers and future resolution. A unit yields
// only at explicit suspension points (Sleep, Await, Gather).
//
// Both paths hand back a Handle: a reference to the unit of work and its
// eventual outcome, backed by a one-shot, multi-consumer Future.
//
// # Quick Start
//
// Run blocking work on a pool:
//
//	pool := taskexec.NewWorkerPool("workers", 4)
//	pool.Start(context.Background())
//	defer pool.Shutdown(true)
//
//	h := pool.Submit(func(ctx context.Context) (any, error) {
//		return fetch(ctx)
//	})
//	v, err := h.Await(context.Background())
//
// Run cooperative units on a scheduler:
//
//	sched := taskexec.NewScheduler("loop", nil)
//	h := sched.Spawn(func(tc *taskexec.TaskContext) (any, error) {
//		if err := tc.Sleep(100 * time.Millisecond); err != nil {
//			return nil, err
//		}
//		return "done", nil
//	})
//	v, err := sched.RunUntilComplete(h)
//
// The two compose: a scheduler unit can Await a pool handle, so CPU- or
// IO-bound work runs in parallel while coordination stays cooperative.
//
// # Errors
//
// Every Await either returns a value or exactly one error kind: a
// WorkError wrapping the failure raised by user work, ErrCancelled,
// ErrShutdown, or ErrTimeout. Contract violations (ErrAlreadyResolved,
// ErrNotOwner) surface immediately at the violating call site.
//
// # Observability
//
// Pools and schedulers accept Logger and Metrics hooks and expose
// Stats() snapshots; the observability/prometheus package exports both
// to Prometheus collectors.
package taskexec
