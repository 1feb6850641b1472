package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/DevAlishar/taskexec/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetricsExporter_Counters tests counter and gauge recording
// Main test items:
// 1. Failures increment the per-source, per-state counter
// 2. Queue depth sets the per-source gauge
// 3. Rejections increment the per-reason counter
func TestMetricsExporter_Counters(t *testing.T) {
	reg := prom.NewRegistry()
	exp, err := NewMetricsExporter("taskexec", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exp.RecordTaskFailure("workers", core.StateFailed)
	exp.RecordTaskFailure("workers", core.StateFailed)
	exp.RecordTaskFailure("workers", core.StateCancelled)

	if got := testutil.ToFloat64(exp.taskFailureTotal.WithLabelValues("workers", "failed")); got != 2 {
		t.Errorf("Expected 2 failed, got %v", got)
	}
	if got := testutil.ToFloat64(exp.taskFailureTotal.WithLabelValues("workers", "cancelled")); got != 1 {
		t.Errorf("Expected 1 cancelled, got %v", got)
	}

	exp.RecordQueueDepth("workers", 5)
	if got := testutil.ToFloat64(exp.queueDepth.WithLabelValues("workers")); got != 5 {
		t.Errorf("Expected queue depth 5, got %v", got)
	}
	exp.RecordQueueDepth("workers", 0)
	if got := testutil.ToFloat64(exp.queueDepth.WithLabelValues("workers")); got != 0 {
		t.Errorf("Expected queue depth 0, got %v", got)
	}

	exp.RecordTaskRejected("workers", "shutdown")
	if got := testutil.ToFloat64(exp.taskRejectedTotal.WithLabelValues("workers", "shutdown")); got != 1 {
		t.Errorf("Expected 1 rejection, got %v", got)
	}
}

// TestMetricsExporter_Duration tests histogram registration and
// observation through the registry
func TestMetricsExporter_Duration(t *testing.T) {
	reg := prom.NewRegistry()
	exp, err := NewMetricsExporter("taskexec", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exp.RecordTaskDuration("workers", core.StateCompleted, 25*time.Millisecond)

	if got := testutil.CollectAndCount(reg, "taskexec_task_duration_seconds"); got != 1 {
		t.Errorf("Expected 1 duration series, got %d", got)
	}
}

// TestMetricsExporter_EmptyLabelsNormalized tests the label fallback
func TestMetricsExporter_EmptyLabelsNormalized(t *testing.T) {
	reg := prom.NewRegistry()
	exp, err := NewMetricsExporter("taskexec", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exp.RecordTaskRejected("", "")
	if got := testutil.ToFloat64(exp.taskRejectedTotal.WithLabelValues("unknown", "unknown")); got != 1 {
		t.Errorf("Expected empty labels to normalize to 'unknown', got %v", got)
	}
}

// TestMetricsExporter_Reregister tests that a second exporter on the
// same registry reuses the existing collectors instead of failing
func TestMetricsExporter_Reregister(t *testing.T) {
	reg := prom.NewRegistry()

	first, err := NewMetricsExporter("taskexec", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("First NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("taskexec", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("Second NewMetricsExporter failed: %v", err)
	}

	first.RecordTaskFailure("p", core.StateFailed)
	second.RecordTaskFailure("p", core.StateFailed)

	if got := testutil.ToFloat64(first.taskFailureTotal.WithLabelValues("p", "failed")); got != 2 {
		t.Errorf("Expected shared collector with count 2, got %v", got)
	}
}

type fakePoolProvider struct {
	stats core.PoolStats
}

func (f *fakePoolProvider) Stats() core.PoolStats { return f.stats }

type fakeSchedulerProvider struct {
	stats core.SchedulerStats
}

func (f *fakeSchedulerProvider) Stats() core.SchedulerStats { return f.stats }

// TestSnapshotPoller_Collect tests the snapshot gauges
// Main test items:
// 1. Start performs an immediate collection
// 2. Pool and scheduler snapshots land in the labeled gauges
// 3. Stop is idempotent
func TestSnapshotPoller_Collect(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, time.Hour)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddPool("workers", &fakePoolProvider{stats: core.PoolStats{
		Name:    "workers",
		Workers: 3,
		Queued:  4,
		Active:  2,
		Running: true,
	}})
	poller.AddScheduler("loop", &fakeSchedulerProvider{stats: core.SchedulerStats{
		Name:    "loop",
		Spawned: 10,
		Ready:   1,
		Timers:  2,
		Waiting: 3,
	}})

	// The poll interval is an hour; the collection we observe is the
	// immediate one performed on Start.
	poller.Start(context.Background())
	poller.Stop()
	poller.Stop()

	if got := testutil.ToFloat64(poller.poolQueued.WithLabelValues("workers")); got != 4 {
		t.Errorf("Expected pool_queued 4, got %v", got)
	}
	if got := testutil.ToFloat64(poller.poolActive.WithLabelValues("workers")); got != 2 {
		t.Errorf("Expected pool_active 2, got %v", got)
	}
	if got := testutil.ToFloat64(poller.poolWorkers.WithLabelValues("workers")); got != 3 {
		t.Errorf("Expected pool_workers 3, got %v", got)
	}
	if got := testutil.ToFloat64(poller.poolRunning.WithLabelValues("workers")); got != 1 {
		t.Errorf("Expected pool_running 1, got %v", got)
	}

	if got := testutil.ToFloat64(poller.schedSpawned.WithLabelValues("loop")); got != 10 {
		t.Errorf("Expected scheduler_spawned_total 10, got %v", got)
	}
	if got := testutil.ToFloat64(poller.schedReady.WithLabelValues("loop")); got != 1 {
		t.Errorf("Expected scheduler_ready 1, got %v", got)
	}
	if got := testutil.ToFloat64(poller.schedTimers.WithLabelValues("loop")); got != 2 {
		t.Errorf("Expected scheduler_timers 2, got %v", got)
	}
	if got := testutil.ToFloat64(poller.schedWaiting.WithLabelValues("loop")); got != 3 {
		t.Errorf("Expected scheduler_waiting 3, got %v", got)
	}
}

// TestSnapshotPoller_LivePool tests polling a real pool
func TestSnapshotPoller_LivePool(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, time.Hour)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	sched := core.NewScheduler("live", &core.SchedulerConfig{Logger: core.NewNoOpLogger()})
	h := sched.Spawn(func(tc *core.TaskContext) (any, error) { return nil, nil })
	if _, err := sched.RunUntilComplete(h); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	poller.AddScheduler("live", sched)
	poller.Start(context.Background())
	poller.Stop()

	if got := testutil.ToFloat64(poller.schedSpawned.WithLabelValues("live")); got != 1 {
		t.Errorf("Expected scheduler_spawned_total 1, got %v", got)
	}
}
