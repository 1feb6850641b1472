package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/DevAlishar/taskexec/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SchedulerSnapshotProvider provides current scheduler stats snapshots.
type SchedulerSnapshotProvider interface {
	Stats() core.SchedulerStats
}

// SnapshotPoller periodically exports pool/scheduler Stats() snapshots
// into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	schedulersMu sync.RWMutex
	schedulers   map[string]SchedulerSnapshotProvider

	poolQueued  *prom.GaugeVec
	poolActive  *prom.GaugeVec
	poolWorkers *prom.GaugeVec
	poolRunning *prom.GaugeVec

	schedSpawned *prom.GaugeVec
	schedReady   *prom.GaugeVec
	schedTimers  *prom.GaugeVec
	schedWaiting *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	poolQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskexec",
		Name:      "pool_queued",
		Help:      "Queued work items per pool.",
	}, []string{"pool"})
	poolActive := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskexec",
		Name:      "pool_active",
		Help:      "Active work items per pool.",
	}, []string{"pool"})
	poolWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskexec",
		Name:      "pool_workers",
		Help:      "Worker count per pool.",
	}, []string{"pool"})
	poolRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskexec",
		Name:      "pool_running",
		Help:      "Pool running state (1=running, 0=stopped).",
	}, []string{"pool"})

	schedSpawned := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskexec",
		Name:      "scheduler_spawned_total",
		Help:      "Units spawned per scheduler, snapshot.",
	}, []string{"scheduler"})
	schedReady := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskexec",
		Name:      "scheduler_ready",
		Help:      "Units ready to resume per scheduler.",
	}, []string{"scheduler"})
	schedTimers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskexec",
		Name:      "scheduler_timers",
		Help:      "Pending timer registrations per scheduler.",
	}, []string{"scheduler"})
	schedWaiting := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "taskexec",
		Name:      "scheduler_waiting",
		Help:      "Suspended units waiting on timers or dependencies.",
	}, []string{"scheduler"})

	var err error
	if poolQueued, err = registerCollector(reg, poolQueued); err != nil {
		return nil, err
	}
	if poolActive, err = registerCollector(reg, poolActive); err != nil {
		return nil, err
	}
	if poolWorkers, err = registerCollector(reg, poolWorkers); err != nil {
		return nil, err
	}
	if poolRunning, err = registerCollector(reg, poolRunning); err != nil {
		return nil, err
	}
	if schedSpawned, err = registerCollector(reg, schedSpawned); err != nil {
		return nil, err
	}
	if schedReady, err = registerCollector(reg, schedReady); err != nil {
		return nil, err
	}
	if schedTimers, err = registerCollector(reg, schedTimers); err != nil {
		return nil, err
	}
	if schedWaiting, err = registerCollector(reg, schedWaiting); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:     interval,
		pools:        make(map[string]PoolSnapshotProvider),
		schedulers:   make(map[string]SchedulerSnapshotProvider),
		poolQueued:   poolQueued,
		poolActive:   poolActive,
		poolWorkers:  poolWorkers,
		poolRunning:  poolRunning,
		schedSpawned: schedSpawned,
		schedReady:   schedReady,
		schedTimers:  schedTimers,
		schedWaiting: schedWaiting,
	}, nil
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// AddScheduler adds or replaces a scheduler snapshot provider by name.
func (p *SnapshotPoller) AddScheduler(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.schedulersMu.Lock()
	p.schedulers[name] = provider
	p.schedulersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		if stats.Running {
			p.poolRunning.WithLabelValues(name).Set(1)
		} else {
			p.poolRunning.WithLabelValues(name).Set(0)
		}
	}
	p.poolsMu.RUnlock()

	p.schedulersMu.RLock()
	for name, provider := range p.schedulers {
		stats := provider.Stats()
		p.schedSpawned.WithLabelValues(name).Set(float64(stats.Spawned))
		p.schedReady.WithLabelValues(name).Set(float64(stats.Ready))
		p.schedTimers.WithLabelValues(name).Set(float64(stats.Timers))
		p.schedWaiting.WithLabelValues(name).Set(float64(stats.Waiting))
	}
	p.schedulersMu.RUnlock()
}
