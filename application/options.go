package application

import (
	"time"

	"github.com/juju/clock"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/heapscope/domain/diagnostics"
	"github.com/felixgeelhaar/heapscope/domain/transport"
	"github.com/felixgeelhaar/heapscope/infrastructure/schedule"
	"github.com/felixgeelhaar/heapscope/infrastructure/telemetry"
)

// Option configures an agent.
type Option func(*Config)

// WithID sets the agent ID used in logs.
func WithID(id string) Option {
	return func(c *Config) {
		c.ID = id
	}
}

// WithEndpoints sets the publish and request endpoints.
func WithEndpoints(e transport.Endpoints) Option {
	return func(c *Config) {
		c.Endpoints = e
	}
}

// WithTransport sets the transport.
func WithTransport(t transport.Transport) Option {
	return func(c *Config) {
		c.Transport = t
	}
}

// WithStatsSource sets the statistics source.
func WithStatsSource(s diagnostics.StatsSource) Option {
	return func(c *Config) {
		c.Stats = s
	}
}

// WithAllocationTracer sets the allocation tracer.
func WithAllocationTracer(t diagnostics.AllocationTracer) Option {
	return func(c *Config) {
		c.Tracer = t
	}
}

// WithCollector sets the GC collector.
func WithCollector(col diagnostics.Collector) Option {
	return func(c *Config) {
		c.Collector = col
	}
}

// WithSnapshots sets the factory for the heap snapshot producer.
func WithSnapshots(f SnapshotFactory) Option {
	return func(c *Config) {
		c.Snapshots = f
	}
}

// WithClock sets the clock driving ticks and task cadences.
func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		c.Clock = clk
	}
}

// WithTickInterval sets the bounded wait at the end of each tick.
func WithTickInterval(d time.Duration) Option {
	return func(c *Config) {
		c.TickInterval = d
	}
}

// WithStatsInterval sets the gc_stats cadence.
func WithStatsInterval(d time.Duration) Option {
	return func(c *Config) {
		c.StatsInterval = d
	}
}

// WithFlushInterval sets the outbound flush cadence.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Config) {
		c.FlushInterval = d
	}
}

// WithBufferSize sets the outbound queue capacity.
func WithBufferSize(n int) Option {
	return func(c *Config) {
		c.BufferSize = n
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithSpans sets the tracer used for command spans.
func WithSpans(t trace.Tracer) Option {
	return func(c *Config) {
		c.Spans = t
	}
}

// WithTask registers an additional periodic task after the built-in ones.
func WithTask(t *schedule.Task) Option {
	return func(c *Config) {
		c.Tasks = append(c.Tasks, t)
	}
}
