package core

import (
	"container/heap"
	"runtime/debug"
	"sync"
	"time"
)

// CoroutineFunc is a cooperative unit of work. It runs on the
// scheduler's single logical thread and yields control only at the
// suspension points offered by its TaskContext (Sleep, Await, Gather).
// A unit that never suspends blocks the whole scheduler; that is a
// caller responsibility, not a scheduler bug.
type CoroutineFunc func(tc *TaskContext) (any, error)

// SchedulerConfig holds the optional hooks for a Scheduler. Nil fields
// fall back to defaults.
type SchedulerConfig struct {
	// Logger receives lifecycle events. Defaults to DefaultLogger.
	Logger Logger

	// Metrics records unit execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// PanicHandler is called when a unit panics. Defaults to
	// DefaultPanicHandler.
	PanicHandler PanicHandler

	// HistorySize bounds the execution history ring. Defaults to 100.
	HistorySize int
}

// unit is one spawned coroutine and its scheduler-side bookkeeping.
// All mutable fields except the channels are guarded by Scheduler.mu.
type unit struct {
	seq    uint64 // registration order, used for ready/timer tie-breaks
	handle *Handle
	fn     CoroutineFunc

	resume chan error // scheduler -> unit; carries the injected error, nil normally

	started    bool
	waiting    bool
	waitSeq    uint64 // bumped on every suspension and cancellation
	pendingErr error  // delivered at the next resume (cancellation injection)
	startedAt  time.Time
}

// schedEvent is the unit -> scheduler half of the resume/yield
// handshake. Every resume is answered by exactly one event.
type schedEvent struct {
	u    *unit
	done bool
}

// Scheduler runs suspendable units to completion on a single logical
// thread, multiplexing on timers and future resolution. Only one unit
// executes between suspension points; ready units resume in FIFO order
// with ties broken by registration order.
//
// A Scheduler is an explicit instance owned by the caller; there is no
// process-wide event loop.
type Scheduler struct {
	name         string
	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler
	history      *ExecutionHistory

	mu           sync.Mutex
	ready        []*unit
	timers       timerHeap
	nextSeq      uint64
	spawned      uint64
	waitingUnits int
	running      bool

	events chan schedEvent
	wake   chan struct{}
}

// NewScheduler creates a Scheduler. The name labels log and metric
// events; empty defaults to "scheduler".
func NewScheduler(name string, config *SchedulerConfig) *Scheduler {
	if name == "" {
		name = "scheduler"
	}
	s := &Scheduler{
		name:   name,
		events: make(chan schedEvent),
		wake:   make(chan struct{}, 1),
	}
	heap.Init(&s.timers)

	historySize := 0
	if config != nil {
		s.logger = config.Logger
		s.metrics = config.Metrics
		s.panicHandler = config.PanicHandler
		historySize = config.HistorySize
	}
	if s.logger == nil {
		s.logger = NewDefaultLogger()
	}
	if s.metrics == nil {
		s.metrics = &NilMetrics{}
	}
	if s.panicHandler == nil {
		s.panicHandler = &DefaultPanicHandler{Logger: s.logger}
	}
	s.history = NewExecutionHistory(historySize)

	return s
}

// Name returns the scheduler's name.
func (s *Scheduler) Name() string { return s.name }

// Spawn registers a unit for execution and returns its handle in the
// Pending state. The unit first runs on a later loop iteration, never
// reentrantly inside Spawn.
func (s *Scheduler) Spawn(fn CoroutineFunc) *Handle {
	h := NewHandle()
	u := &unit{
		handle: h,
		fn:     fn,
		resume: make(chan error, 1),
	}

	s.mu.Lock()
	u.seq = s.nextSeq
	s.nextSeq++
	s.spawned++
	s.ready = append(s.ready, u)
	s.mu.Unlock()

	s.logger.Debug("unit spawned", F("scheduler", s.name), F("task", h.ID().String()))
	s.wakeup()
	return h
}

// RunUntilComplete drives the scheduler loop on the calling goroutine
// until target resolves, then returns its outcome. The target may also
// be a handle owned by a worker pool; the loop then keeps running
// spawned units while waiting for the external resolution.
//
// Only one driver may run at a time.
func (s *Scheduler) RunUntilComplete(target *Handle) (any, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		panic("Scheduler: RunUntilComplete is already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	// External resolutions (pool handles, Cancel from other goroutines)
	// must break the idle wait.
	target.fut.subscribe(s.wakeup)

	for !target.Resolved() {
		u := s.nextReady()
		if u == nil {
			s.idle()
			continue
		}
		s.step(u)
	}
	return target.fut.peek()
}

// Gather is the driver-side convenience: it spawns a unit that gathers
// the handles and runs the loop until it completes.
func (s *Scheduler) Gather(handles ...*Handle) ([]any, error) {
	h := s.Spawn(func(tc *TaskContext) (any, error) {
		results, err := tc.Gather(handles...)
		return results, err
	})
	v, err := s.RunUntilComplete(h)
	if err != nil {
		return nil, err
	}
	results, _ := v.([]any)
	return results, nil
}

// Stats returns current observability data for this scheduler.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStats{
		Name:    s.name,
		Spawned: s.spawned,
		Ready:   len(s.ready),
		Timers:  s.timers.Len(),
		Waiting: s.waitingUnits,
		Running: s.running,
	}
}

// RecentExecutions returns up to limit recent unit execution records,
// most recent first.
func (s *Scheduler) RecentExecutions(limit int) []ExecutionRecord {
	return s.history.Recent(limit)
}

// nextReady promotes expired timers and pops the next runnable unit.
// Units cancelled before their first run are skipped; their handles are
// already resolved and never reach Running.
func (s *Scheduler) nextReady() *unit {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.promoteExpiredLocked(time.Now())

	for len(s.ready) > 0 {
		u := s.ready[0]
		s.ready[0] = nil
		s.ready = s.ready[1:]

		if !u.started && !u.handle.StartInternal() {
			// Cancelled (or otherwise resolved) before first run.
			continue
		}
		return u
	}
	return nil
}

// promoteExpiredLocked moves expired timer registrations into the ready
// queue in (deadline, registration) order. Stale entries, left behind
// by cancellation or a won await race, are dropped.
func (s *Scheduler) promoteExpiredLocked(now time.Time) {
	for s.timers.Len() > 0 {
		e := s.timers.Peek()
		if e.deadline.After(now) {
			break
		}
		heap.Pop(&s.timers)

		u := e.unit
		if !u.waiting || u.waitSeq != e.waitSeq {
			continue
		}
		u.waiting = false
		s.waitingUnits--
		s.ready = append(s.ready, u)
	}
}

// step resumes one unit and blocks until it suspends again or
// completes. This handshake is what keeps execution single-threaded.
func (s *Scheduler) step(u *unit) {
	s.mu.Lock()
	injected := u.pendingErr
	u.pendingErr = nil
	s.mu.Unlock()

	if !u.started {
		u.started = true
		u.handle.SetCancelHookInternal(func() { s.cancelUnit(u) })
		go s.runUnit(u)
	}

	u.resume <- injected
	<-s.events
}

// runUnit hosts one unit's goroutine. The unit only executes while the
// loop is parked in step, so at most one unit makes progress at a time.
func (s *Scheduler) runUnit(u *unit) {
	injected := <-u.resume
	u.startedAt = time.Now()

	tc := &TaskContext{s: s, u: u, injected: injected}

	var result any
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.panicHandler.HandlePanic(s.name, -1, u.handle.ID(), r, debug.Stack())
				s.metrics.RecordTaskFailure(s.name, StateFailed)
				err = PanicError(r)
			}
		}()
		result, err = u.fn(tc)
	}()

	err = WrapWorkError(err)
	u.handle.ResolveInternal(result, err)
	s.recordFinished(u)

	s.events <- schedEvent{u: u, done: true}
}

func (s *Scheduler) recordFinished(u *unit) {
	finished := time.Now()
	state := u.handle.State()
	s.history.Add(ExecutionRecord{
		TaskID:     u.handle.ID(),
		Source:     s.name,
		WorkerID:   -1,
		State:      state,
		StartedAt:  u.startedAt,
		FinishedAt: finished,
		Duration:   finished.Sub(u.startedAt),
	})
	s.metrics.RecordTaskDuration(s.name, state, finished.Sub(u.startedAt))
	if state != StateCompleted {
		s.metrics.RecordTaskFailure(s.name, state)
	}
}

// cancelUnit is the cooperative cancel hook for started units. A
// suspended unit loses its timer/dependency registration and is resumed
// with ErrCancelled so its defers run; a unit that is currently
// executing receives the error at its next suspension point.
func (s *Scheduler) cancelUnit(u *unit) {
	s.mu.Lock()
	if u.handle.Resolved() {
		s.mu.Unlock()
		return
	}
	u.pendingErr = ErrCancelled
	if u.waiting {
		u.waiting = false
		s.waitingUnits--
		u.waitSeq++ // invalidate outstanding timer and future registrations
		s.ready = append(s.ready, u)
	}
	s.mu.Unlock()

	s.logger.Debug("unit cancelled", F("scheduler", s.name), F("task", u.handle.ID().String()))
	s.wakeup()
}

// unitReady is the future-subscription callback path: it may run on any
// goroutine (a pool worker resolving a dependency, for instance).
func (s *Scheduler) unitReady(u *unit, waitSeq uint64) {
	s.mu.Lock()
	if !u.waiting || u.waitSeq != waitSeq {
		s.mu.Unlock()
		return
	}
	u.waiting = false
	s.waitingUnits--
	s.ready = append(s.ready, u)
	s.mu.Unlock()

	s.wakeup()
}

// idle parks the driver until the earliest timer deadline or an
// external wakeup, whichever comes first. A deadline that expired
// between the last promotion and now returns immediately.
func (s *Scheduler) idle() {
	s.mu.Lock()
	var wait time.Duration
	hasTimer := false
	if e := s.timers.Peek(); e != nil {
		wait = time.Until(e.deadline)
		hasTimer = true
	}
	s.mu.Unlock()

	if hasTimer {
		if wait <= 0 {
			return
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.wake:
		}
		return
	}

	<-s.wake
}

func (s *Scheduler) wakeup() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// =============================================================================
// TaskContext: the suspension-point API handed to each unit
// =============================================================================

// TaskContext is passed to every CoroutineFunc. Its methods are the
// unit's suspension points and must only be called from that unit's own
// function.
type TaskContext struct {
	s *Scheduler
	u *unit

	// injected carries an error delivered with the first resume (a
	// cancellation that raced the unit's first run).
	injected error
}

// Scheduler returns the owning scheduler, so units can spawn siblings.
func (tc *TaskContext) Scheduler() *Scheduler {
	return tc.s
}

// Handle returns the unit's own handle.
func (tc *TaskContext) Handle() *Handle {
	return tc.u.handle
}

// Sleep suspends the unit for at least d. It returns ErrCancelled when
// the unit is cancelled while sleeping.
func (tc *TaskContext) Sleep(d time.Duration) error {
	if err := tc.checkInjected(); err != nil {
		return err
	}

	s, u := tc.s, tc.u
	s.mu.Lock()
	seq := tc.beginWaitLocked()
	if u.pendingErr == nil {
		heap.Push(&s.timers, &timerEntry{
			deadline: time.Now().Add(d),
			unit:     u,
			waitSeq:  seq,
		})
	}
	s.mu.Unlock()

	return tc.yield()
}

// Await suspends the unit until h resolves and returns its outcome. A
// handle that is already resolved returns immediately with the cached
// result. Cancellation of the awaiting unit surfaces as ErrCancelled.
func (tc *TaskContext) Await(h *Handle) (any, error) {
	if err := tc.checkInjected(); err != nil {
		return nil, err
	}
	if h.Resolved() {
		return h.fut.peek()
	}

	s, u := tc.s, tc.u
	s.mu.Lock()
	seq := tc.beginWaitLocked()
	registered := u.pendingErr == nil
	s.mu.Unlock()

	if registered {
		h.fut.subscribe(func() { s.unitReady(u, seq) })
	}

	if err := tc.yield(); err != nil {
		return nil, err
	}
	return h.fut.peek()
}

// AwaitTimeout races h against a timer. If h resolves first its outcome
// is returned and the timer entry goes stale; if the timer fires first,
// h is cancelled and ErrTimeout is returned.
func (tc *TaskContext) AwaitTimeout(h *Handle, d time.Duration) (any, error) {
	if err := tc.checkInjected(); err != nil {
		return nil, err
	}
	if h.Resolved() {
		return h.fut.peek()
	}

	s, u := tc.s, tc.u
	s.mu.Lock()
	seq := tc.beginWaitLocked()
	registered := u.pendingErr == nil
	if registered {
		heap.Push(&s.timers, &timerEntry{
			deadline: time.Now().Add(d),
			unit:     u,
			waitSeq:  seq,
		})
	}
	s.mu.Unlock()

	if registered {
		h.fut.subscribe(func() { s.unitReady(u, seq) })
	}

	if err := tc.yield(); err != nil {
		return nil, err
	}
	if h.Resolved() {
		return h.fut.peek()
	}

	// Timer won the race; the loser is cancelled.
	h.Cancel()
	return nil, ErrTimeout
}

// Gather suspends the unit until every handle resolves. Results are
// positioned to match the input order regardless of completion order.
// On failure the first error encountered (in input order) is returned
// together with the results observed so far.
func (tc *TaskContext) Gather(handles ...*Handle) ([]any, error) {
	results := make([]any, len(handles))
	for i, h := range handles {
		v, err := tc.Await(h)
		if err != nil {
			return results, err
		}
		results[i] = v
	}
	return results, nil
}

// checkInjected surfaces a cancellation that was delivered with the
// resume that started this run.
func (tc *TaskContext) checkInjected() error {
	err := tc.injected
	tc.injected = nil
	return err
}

// beginWaitLocked opens a new wait generation. When a cancellation is
// already pending the unit is requeued instead of parked, so the next
// yield returns immediately with the injected error.
func (tc *TaskContext) beginWaitLocked() uint64 {
	s, u := tc.s, tc.u
	u.waitSeq++
	if u.pendingErr != nil {
		s.ready = append(s.ready, u)
		return u.waitSeq
	}
	u.waiting = true
	s.waitingUnits++
	return u.waitSeq
}

// yield hands control back to the scheduler loop and blocks until the
// unit is resumed. The returned error is non-nil when cancellation was
// injected while suspended.
func (tc *TaskContext) yield() error {
	tc.s.events <- schedEvent{u: tc.u, done: false}
	return <-tc.u.resume
}
