package taskexec

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/DevAlishar/taskexec/core"
)

// PoolConfig holds the optional hooks for a WorkerPool. Nil fields fall
// back to defaults. The only execution knob is the worker count passed
// to the constructor.
type PoolConfig struct {
	// Logger receives lifecycle events. Defaults to DefaultLogger.
	Logger core.Logger

	// Metrics records execution metrics. Defaults to NilMetrics.
	Metrics core.Metrics

	// PanicHandler is called when work panics. Defaults to
	// DefaultPanicHandler.
	PanicHandler core.PanicHandler

	// RejectedTaskHandler is called when a submission is rejected after
	// shutdown. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler core.RejectedTaskHandler

	// HistorySize bounds the execution history ring. Defaults to 100.
	HistorySize int
}

// WorkerPool executes independent blocking work across a fixed set of
// parallel workers pulling from a shared FIFO queue. Every submission
// returns a Handle; a failure inside user work is captured on the
// handle and never crashes the worker.
type WorkerPool struct {
	name     string
	workers  int
	dispatch *core.Dispatcher
	history  *core.ExecutionHistory
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	running   bool
	runningMu sync.RWMutex
}

// NewWorkerPool creates a WorkerPool with default hooks.
// Panics if workers < 1.
func NewWorkerPool(name string, workers int) *WorkerPool {
	return NewWorkerPoolWithConfig(name, workers, nil)
}

// NewWorkerPoolWithConfig creates a WorkerPool with the given hooks.
// Panics if workers < 1.
func NewWorkerPoolWithConfig(name string, workers int, config *PoolConfig) *WorkerPool {
	if workers < 1 {
		panic(fmt.Sprintf("WorkerPool: workers must be at least 1, got %d", workers))
	}
	if name == "" {
		name = fmt.Sprintf("pool-%d", workers)
	}

	dispatchConfig := core.DefaultDispatcherConfig()
	historySize := 0
	if config != nil {
		if config.Logger != nil {
			dispatchConfig.Logger = config.Logger
		}
		if config.Metrics != nil {
			dispatchConfig.Metrics = config.Metrics
		}
		if config.PanicHandler != nil {
			dispatchConfig.PanicHandler = config.PanicHandler
		}
		if config.RejectedTaskHandler != nil {
			dispatchConfig.RejectedTaskHandler = config.RejectedTaskHandler
		}
		historySize = config.HistorySize
	}

	return &WorkerPool{
		name:     name,
		workers:  workers,
		dispatch: core.NewDispatcher(name, workers, dispatchConfig),
		history:  core.NewExecutionHistory(historySize),
	}
}

// Start spawns the worker goroutines. Repeated calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if p.running {
		return // Already running
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i, p.ctx)
	}

	p.dispatch.GetLogger().Info("pool started",
		core.F("pool", p.name), core.F("workers", p.workers))
}

// Submit enqueues fn and returns its handle immediately; it never
// blocks. After shutdown the returned handle is already Failed with
// ErrShutdown.
func (p *WorkerPool) Submit(fn core.WorkFunc) *core.Handle {
	h := core.NewHandle()
	if !p.dispatch.Submit(core.WorkItem{Handle: h, Fn: fn}) {
		h.ResolveInternal(nil, core.ErrShutdown)
	}
	return h
}

// Map submits one unit of work per item. The i-th returned handle
// corresponds to the i-th item regardless of completion order.
func Map[T any](p *WorkerPool, fn func(ctx context.Context, item T) (any, error), items []T) []*core.Handle {
	handles := make([]*core.Handle, len(items))
	for i, item := range items {
		item := item
		handles[i] = p.Submit(func(ctx context.Context) (any, error) {
			return fn(ctx, item)
		})
	}
	return handles
}

// Shutdown stops accepting new work. With wait=true it blocks until all
// queued and in-flight work completes, then stops the workers. With
// wait=false it fails every queued handle with ErrShutdown and returns
// immediately; work already running still completes, and the workers
// exit afterwards (Join waits for them).
func (p *WorkerPool) Shutdown(wait bool) {
	p.dispatch.Shutdown()

	p.runningMu.RLock()
	running := p.running
	p.runningMu.RUnlock()

	if !wait || !running {
		p.failPending()
		p.stopWorkers()
		p.failPending()
		return
	}

	// Drain: workers keep pulling until the queue is empty and nothing
	// is in flight.
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if p.dispatch.QueuedTaskCount() == 0 && p.dispatch.ActiveTaskCount() == 0 {
			break
		}
	}

	p.stopWorkers()
	p.Join()

	// A submission racing Shutdown can slip its item in after the
	// workers drained the queue; fail anything left behind.
	p.failPending()
}

func (p *WorkerPool) failPending() {
	for _, item := range p.dispatch.DrainPending() {
		item.Handle.ResolveInternal(nil, core.ErrShutdown)
	}
}

func (p *WorkerPool) stopWorkers() {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	if !p.running {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.running = false

	p.dispatch.GetLogger().Info("pool stopped", core.F("pool", p.name))
}

// Join waits for all worker goroutines to finish.
func (p *WorkerPool) Join() {
	p.wg.Wait()
}

// Name returns the pool's name.
func (p *WorkerPool) Name() string { return p.name }

// IsRunning returns whether the pool is running.
func (p *WorkerPool) IsRunning() bool {
	p.runningMu.RLock()
	defer p.runningMu.RUnlock()
	return p.running
}

// WorkerCount returns the number of workers.
func (p *WorkerPool) WorkerCount() int { return p.workers }

// QueuedTaskCount returns the number of items waiting in the queue.
func (p *WorkerPool) QueuedTaskCount() int { return p.dispatch.QueuedTaskCount() }

// ActiveTaskCount returns the number of items currently executing.
func (p *WorkerPool) ActiveTaskCount() int { return p.dispatch.ActiveTaskCount() }

// Stats returns current observability data for this pool.
func (p *WorkerPool) Stats() core.PoolStats {
	return core.PoolStats{
		Name:    p.name,
		Workers: p.workers,
		Queued:  p.dispatch.QueuedTaskCount(),
		Active:  p.dispatch.ActiveTaskCount(),
		Running: p.IsRunning(),
	}
}

// RecentExecutions returns up to limit recent execution records, most
// recent first.
func (p *WorkerPool) RecentExecutions(limit int) []core.ExecutionRecord {
	return p.history.Recent(limit)
}

// workerLoop is the main loop for each worker.
func (p *WorkerPool) workerLoop(id int, ctx context.Context) {
	defer p.wg.Done()
	stopCh := ctx.Done()

	for {
		item, ok := p.dispatch.GetWork(stopCh)
		if !ok {
			// Work source closed or context cancelled
			return
		}
		p.runWork(id, item)
	}
}

// runWork executes one item: panics are captured as WorkError, a
// cancelled handle is skipped before start, and the worker always
// survives to process the next item.
func (p *WorkerPool) runWork(id int, item core.WorkItem) {
	h := item.Handle
	if !h.StartInternal() {
		// Cancelled while queued; never runs.
		return
	}

	// The task context is independent of the pool context: cancelling
	// the pool must not interrupt work that is already running.
	taskCtx, cancelTask := context.WithCancel(context.Background())
	h.SetCancelHookInternal(cancelTask)
	defer cancelTask()

	p.dispatch.OnTaskStart()
	startedAt := time.Now()

	var result any
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				p.dispatch.GetPanicHandler().HandlePanic(p.name, id, h.ID(), r, debug.Stack())
				err = core.PanicError(r)
			}
		}()
		result, err = item.Fn(taskCtx)
	}()

	if err != nil && h.CancelRequested() && errors.Is(err, context.Canceled) {
		err = core.ErrCancelled
	}
	h.ResolveInternal(result, core.WrapWorkError(err))
	p.dispatch.OnTaskEnd()

	finishedAt := time.Now()
	state := h.State()
	p.history.Add(core.ExecutionRecord{
		TaskID:     h.ID(),
		Source:     p.name,
		WorkerID:   id,
		State:      state,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
	})
	p.dispatch.GetMetrics().RecordTaskDuration(p.name, state, finishedAt.Sub(startedAt))
	if state != core.StateCompleted {
		p.dispatch.GetMetrics().RecordTaskFailure(p.name, state)
	}
}
