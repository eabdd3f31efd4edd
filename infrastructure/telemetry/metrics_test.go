package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/felixgeelhaar/heapscope/domain/agent"
)

// setupTestMetrics creates a provider backed by a manual reader.
func setupTestMetrics(t *testing.T) (*metric.ManualReader, *MetricsProvider) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	cfg := DefaultMetricsConfig()
	cfg.Provider = provider
	mp := NewMetricsProvider(cfg)
	if mp.Error() != nil {
		t.Fatalf("failed to create metrics provider: %v", mp.Error())
	}
	return reader, mp
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumInt64(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsProvider_Commands(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)
	ctx := context.Background()

	mp.RecordCommand(ctx, agent.CommandTriggerGC, nil)
	mp.RecordCommand(ctx, agent.CommandObjectSpaceSnapshot, errors.New("busy"))
	mp.RecordCommand(ctx, agent.Command("bogus"), nil)

	metrics := collect(t, reader)
	if got := sumInt64(t, metrics["heapscope.commands"]); got != 3 {
		t.Errorf("heapscope.commands = %d, want 3", got)
	}
	if got := sumInt64(t, metrics["heapscope.command.errors"]); got != 1 {
		t.Errorf("heapscope.command.errors = %d, want 1", got)
	}
}

func TestMetricsProvider_TasksAndDrops(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)
	ctx := context.Background()

	mp.RecordTask(ctx, "gc_stats", time.Millisecond, nil)
	mp.RecordTask(ctx, "flush", 2*time.Millisecond, errors.New("down"))
	mp.RecordDropped(ctx, 4)
	mp.RecordTick(ctx, 3*time.Millisecond)

	metrics := collect(t, reader)
	if got := sumInt64(t, metrics["heapscope.task.runs"]); got != 2 {
		t.Errorf("heapscope.task.runs = %d, want 2", got)
	}
	if got := sumInt64(t, metrics["heapscope.task.errors"]); got != 1 {
		t.Errorf("heapscope.task.errors = %d, want 1", got)
	}
	if got := sumInt64(t, metrics["heapscope.outbound.dropped"]); got != 4 {
		t.Errorf("heapscope.outbound.dropped = %d, want 4", got)
	}
	hist, ok := metrics["heapscope.tick.duration"].Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("heapscope.tick.duration = %+v", metrics["heapscope.tick.duration"].Data)
	}
}

func TestMetricsProvider_HeapGauges(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)
	ctx := context.Background()

	mp.RecordHeap(ctx, 100, 40)
	mp.RecordHeap(ctx, 200, 80)

	metrics := collect(t, reader)
	gauge, ok := metrics["heapscope.heap.total_size"].Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 1 {
		t.Fatalf("heapscope.heap.total_size = %+v", metrics["heapscope.heap.total_size"].Data)
	}
	if gauge.DataPoints[0].Value != 200 {
		t.Errorf("total_size = %d, want last value 200", gauge.DataPoints[0].Value)
	}
	if clampInt64(^uint64(0)) <= 0 {
		t.Error("clampInt64 overflowed")
	}
}

func TestMetricsProvider_Lifecycle(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)
	ctx := context.Background()

	mp.IncrementActiveAgents(ctx)
	mp.RecordStateTransition(ctx, agent.StateCreated, agent.StateStarted)
	mp.RecordStateTransition(ctx, agent.StateStarted, agent.StateStopping)
	mp.DecrementActiveAgents(ctx)

	metrics := collect(t, reader)
	if got := sumInt64(t, metrics["heapscope.state.transitions"]); got != 2 {
		t.Errorf("heapscope.state.transitions = %d, want 2", got)
	}
	if got := sumInt64(t, metrics["heapscope.agents.active"]); got != 0 {
		t.Errorf("heapscope.agents.active = %d, want 0", got)
	}
}

func TestNoopMetricsProvider(t *testing.T) {
	t.Parallel()

	var m Metrics = NoopMetricsProvider{}
	ctx := context.Background()
	m.RecordCommand(ctx, agent.CommandTriggerGC, nil)
	m.RecordTask(ctx, "flush", 0, nil)
	m.RecordDropped(ctx, 1)
	m.RecordHeap(ctx, 1, 1)
	m.RecordTick(ctx, 0)
	m.RecordStateTransition(ctx, agent.StateCreated, agent.StateStarted)
	m.IncrementActiveAgents(ctx)
	m.DecrementActiveAgents(ctx)
}
