// Package telemetry provides OpenTelemetry metrics for the agent loop.
package telemetry

import (
	"context"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/felixgeelhaar/heapscope/domain/agent"
)

// Metrics defines the interface for metrics recording.
type Metrics interface {
	RecordCommand(ctx context.Context, cmd agent.Command, err error)
	RecordTask(ctx context.Context, task string, duration time.Duration, err error)
	RecordDropped(ctx context.Context, n int)
	RecordHeap(ctx context.Context, totalHeapSize, totalMemsize uint64)
	RecordTick(ctx context.Context, duration time.Duration)
	RecordStateTransition(ctx context.Context, from, to agent.State)
	IncrementActiveAgents(ctx context.Context)
	DecrementActiveAgents(ctx context.Context)
}

// MetricsProvider provides access to metrics instruments.
type MetricsProvider struct {
	meter metric.Meter

	// Counters
	commands         metric.Int64Counter
	commandErrors    metric.Int64Counter
	taskRuns         metric.Int64Counter
	taskErrors       metric.Int64Counter
	dropped          metric.Int64Counter
	stateTransitions metric.Int64Counter

	// Gauges
	totalHeapSize metric.Int64Gauge
	totalMemsize  metric.Int64Gauge
	activeAgents  metric.Int64UpDownCounter

	// Histograms
	tickDuration metric.Float64Histogram
	taskDuration metric.Float64Histogram

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the name of the meter (default: "github.com/felixgeelhaar/heapscope").
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Provider overrides the global meter provider.
	Provider metric.MeterProvider
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/felixgeelhaar/heapscope",
		MeterVersion: "1.0.0",
	}
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		config.MeterName = DefaultMetricsConfig().MeterName
	}
	provider := config.Provider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	mp := &MetricsProvider{
		meter: provider.Meter(
			config.MeterName,
			metric.WithInstrumentationVersion(config.MeterVersion),
		),
	}
	mp.initOnce.Do(func() {
		mp.initErr = mp.initInstruments()
	})
	return mp
}

func (mp *MetricsProvider) initInstruments() error {
	var err error

	counters := []struct {
		dst        *metric.Int64Counter
		name, desc string
		unit       string
	}{
		{&mp.commands, "heapscope.commands", "Number of dispatched commands", "{command}"},
		{&mp.commandErrors, "heapscope.command.errors", "Number of failed commands", "{error}"},
		{&mp.taskRuns, "heapscope.task.runs", "Number of periodic task runs", "{run}"},
		{&mp.taskErrors, "heapscope.task.errors", "Number of failed periodic task runs", "{error}"},
		{&mp.dropped, "heapscope.outbound.dropped", "Outbound messages dropped because the queue was full", "{message}"},
		{&mp.stateTransitions, "heapscope.state.transitions", "Number of lifecycle transitions", "{transition}"},
	}
	for _, c := range counters {
		*c.dst, err = mp.meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return err
		}
	}

	mp.totalHeapSize, err = mp.meter.Int64Gauge(
		"heapscope.heap.total_size",
		metric.WithDescription("Estimated heap size from allocated pages"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	mp.totalMemsize, err = mp.meter.Int64Gauge(
		"heapscope.heap.total_memsize",
		metric.WithDescription("Estimated memory held by heap objects"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	mp.activeAgents, err = mp.meter.Int64UpDownCounter(
		"heapscope.agents.active",
		metric.WithDescription("Number of running agents"),
		metric.WithUnit("{agent}"),
	)
	if err != nil {
		return err
	}

	mp.tickDuration, err = mp.meter.Float64Histogram(
		"heapscope.tick.duration",
		metric.WithDescription("Duration of one loop tick excluding the wait"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.taskDuration, err = mp.meter.Float64Histogram(
		"heapscope.task.duration",
		metric.WithDescription("Duration of one periodic task run"),
		metric.WithUnit("ms"),
	)
	return err
}

// Error returns any initialization error.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

// RecordCommand records a dispatched command and its outcome.
func (mp *MetricsProvider) RecordCommand(ctx context.Context, cmd agent.Command, err error) {
	name := string(cmd)
	if !cmd.IsKnown() {
		// Keep attribute cardinality bounded.
		name = "unknown"
	}
	attrs := metric.WithAttributes(
		attribute.String("command", name),
		attribute.Bool("success", err == nil),
	)
	mp.commands.Add(ctx, 1, attrs)
	if err != nil {
		mp.commandErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("command", name)))
	}
}

// RecordTask records one periodic task run.
func (mp *MetricsProvider) RecordTask(ctx context.Context, task string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("task", task),
		attribute.Bool("success", err == nil),
	)
	mp.taskRuns.Add(ctx, 1, attrs)
	mp.taskDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		mp.taskErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("task", task)))
	}
}

// RecordDropped records outbound messages dropped by the queue.
func (mp *MetricsProvider) RecordDropped(ctx context.Context, n int) {
	mp.dropped.Add(ctx, int64(n))
}

// RecordHeap records the derived heap sizes of a gc_stats sample.
func (mp *MetricsProvider) RecordHeap(ctx context.Context, totalHeapSize, totalMemsize uint64) {
	mp.totalHeapSize.Record(ctx, clampInt64(totalHeapSize))
	mp.totalMemsize.Record(ctx, clampInt64(totalMemsize))
}

// RecordTick records the busy time of one loop tick.
func (mp *MetricsProvider) RecordTick(ctx context.Context, duration time.Duration) {
	mp.tickDuration.Record(ctx, float64(duration.Microseconds())/1000)
}

// RecordStateTransition records a lifecycle transition.
func (mp *MetricsProvider) RecordStateTransition(ctx context.Context, from, to agent.State) {
	mp.stateTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state.from", string(from)),
		attribute.String("state.to", string(to)),
	))
}

// IncrementActiveAgents increments the running agent gauge.
func (mp *MetricsProvider) IncrementActiveAgents(ctx context.Context) {
	mp.activeAgents.Add(ctx, 1)
}

// DecrementActiveAgents decrements the running agent gauge.
func (mp *MetricsProvider) DecrementActiveAgents(ctx context.Context) {
	mp.activeAgents.Add(ctx, -1)
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// NoopMetricsProvider is a no-op metrics provider for testing or when metrics are disabled.
type NoopMetricsProvider struct{}

// RecordCommand is a no-op.
func (NoopMetricsProvider) RecordCommand(context.Context, agent.Command, error) {}

// RecordTask is a no-op.
func (NoopMetricsProvider) RecordTask(context.Context, string, time.Duration, error) {}

// RecordDropped is a no-op.
func (NoopMetricsProvider) RecordDropped(context.Context, int) {}

// RecordHeap is a no-op.
func (NoopMetricsProvider) RecordHeap(context.Context, uint64, uint64) {}

// RecordTick is a no-op.
func (NoopMetricsProvider) RecordTick(context.Context, time.Duration) {}

// RecordStateTransition is a no-op.
func (NoopMetricsProvider) RecordStateTransition(context.Context, agent.State, agent.State) {}

// IncrementActiveAgents is a no-op.
func (NoopMetricsProvider) IncrementActiveAgents(context.Context) {}

// DecrementActiveAgents is a no-op.
func (NoopMetricsProvider) DecrementActiveAgents(context.Context) {}

var (
	_ Metrics = (*MetricsProvider)(nil)
	_ Metrics = NoopMetricsProvider{}
)
