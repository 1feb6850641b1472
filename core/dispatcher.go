package core

import (
	"sync/atomic"
)

// DispatcherConfig holds the optional hooks for a Dispatcher. Nil
// fields fall back to defaults.
type DispatcherConfig struct {
	// PanicHandler is called when work panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a submission is rejected.
	// Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler

	// Logger receives lifecycle events. Defaults to DefaultLogger.
	Logger Logger
}

// DefaultDispatcherConfig returns a config with default hooks.
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		PanicHandler:        &DefaultPanicHandler{},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{},
		Logger:              NewDefaultLogger(),
	}
}

// Dispatcher is the work source shared by a pool's workers: a FIFO
// queue plus a wakeup signal. Workers block in GetWork until an item is
// queued or the stop channel fires.
type Dispatcher struct {
	name        string
	queue       *WorkQueue
	signal      chan struct{}
	workerCount int

	metricQueued int32 // Waiting in the queue
	metricActive int32 // Executing in a worker

	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler
	logger              Logger

	// Lifecycle
	shuttingDown int32 // atomic flag
}

// NewDispatcher creates a Dispatcher for workerCount workers.
func NewDispatcher(name string, workerCount int, config *DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		name:        name,
		queue:       NewWorkQueue(),
		signal:      make(chan struct{}, workerCount*2),
		workerCount: workerCount,
	}

	if config != nil {
		d.panicHandler = config.PanicHandler
		d.metrics = config.Metrics
		d.rejectedTaskHandler = config.RejectedTaskHandler
		d.logger = config.Logger
	}

	if d.panicHandler == nil {
		d.panicHandler = &DefaultPanicHandler{}
	}
	if d.metrics == nil {
		d.metrics = &NilMetrics{}
	}
	if d.rejectedTaskHandler == nil {
		d.rejectedTaskHandler = &DefaultRejectedTaskHandler{}
	}
	if d.logger == nil {
		d.logger = NewDefaultLogger()
	}

	return d
}

// Submit enqueues work. It returns false when the dispatcher is
// shutting down; the caller is responsible for failing the handle.
func (d *Dispatcher) Submit(item WorkItem) bool {
	if atomic.LoadInt32(&d.shuttingDown) == 1 {
		d.rejectedTaskHandler.HandleRejectedTask(d.name, "shutdown")
		d.metrics.RecordTaskRejected(d.name, "shutdown")
		return false
	}

	d.queue.Push(item)
	atomic.AddInt32(&d.metricQueued, 1) // Metric++

	// Shutdown may have raced the check above and already drained the
	// queue; take the item back unless a worker or drain claimed it.
	if atomic.LoadInt32(&d.shuttingDown) == 1 && d.queue.Remove(item.Handle) {
		atomic.AddInt32(&d.metricQueued, -1)
		d.rejectedTaskHandler.HandleRejectedTask(d.name, "shutdown")
		d.metrics.RecordTaskRejected(d.name, "shutdown")
		return false
	}

	d.metrics.RecordQueueDepth(d.name, d.queue.Len())

	select {
	case d.signal <- struct{}{}:
	default:
		// Signal channel full, but the item is already queued
	}
	return true
}

// GetWork blocks until an item is available or stopCh fires.
// Called by workers.
func (d *Dispatcher) GetWork(stopCh <-chan struct{}) (WorkItem, bool) {
	for {
		if item, ok := d.queue.Pop(); ok {
			atomic.AddInt32(&d.metricQueued, -1) // Metric-- (Left queue)
			return item, true
		}

		select {
		case <-d.signal:
			continue
		case <-stopCh:
			return WorkItem{}, false
		}
	}
}

// Shutdown marks the dispatcher as shutting down; subsequent Submit
// calls are rejected. Queued items stay in place so a waiting shutdown
// can drain them through workers.
func (d *Dispatcher) Shutdown() {
	atomic.StoreInt32(&d.shuttingDown, 1)
}

// DrainPending removes all queued items without executing them, for
// non-waiting shutdown. The queued-count metric is reset accordingly.
func (d *Dispatcher) DrainPending() []WorkItem {
	drained := d.queue.Drain()
	atomic.AddInt32(&d.metricQueued, -int32(len(drained)))
	return drained
}

// IsShuttingDown reports whether Shutdown has been called.
func (d *Dispatcher) IsShuttingDown() bool {
	return atomic.LoadInt32(&d.shuttingDown) == 1
}

// Name returns the dispatcher's name, used as the metrics source label.
func (d *Dispatcher) Name() string { return d.name }

// Metrics
func (d *Dispatcher) WorkerCount() int     { return d.workerCount }
func (d *Dispatcher) QueuedTaskCount() int { return int(atomic.LoadInt32(&d.metricQueued)) }
func (d *Dispatcher) ActiveTaskCount() int { return int(atomic.LoadInt32(&d.metricActive)) }

func (d *Dispatcher) OnTaskStart() {
	atomic.AddInt32(&d.metricActive, 1)
}

func (d *Dispatcher) OnTaskEnd() {
	atomic.AddInt32(&d.metricActive, -1)
}

// GetPanicHandler returns the panic handler for this dispatcher.
func (d *Dispatcher) GetPanicHandler() PanicHandler {
	return d.panicHandler
}

// GetMetrics returns the metrics collector for this dispatcher.
func (d *Dispatcher) GetMetrics() Metrics {
	return d.metrics
}

// GetLogger returns the logger for this dispatcher.
func (d *Dispatcher) GetLogger() Logger {
	return d.logger
}
