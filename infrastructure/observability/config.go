// Package observability provides OpenTelemetry trace export.
package observability

import (
	"time"

	"github.com/felixgeelhaar/heapscope/domain/config"
)

// Config configures the observability infrastructure.
type Config struct {
	// ServiceName is the name of the service for telemetry.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Tracing configures span export.
	Tracing TracingConfig
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Exporter specifies the trace exporter type.
	Exporter ExporterType

	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string

	// Insecure disables TLS for the exporter connection.
	Insecure bool

	// SampleRate is the sampling rate (0.0-1.0, default: 1.0).
	SampleRate float64

	// BatchTimeout is the batch export timeout.
	BatchTimeout time.Duration

	// MaxExportBatchSize is the maximum batch size.
	MaxExportBatchSize int
}

// ExporterType specifies the trace exporter.
type ExporterType string

const (
	// ExporterOTLP exports to an OTLP gRPC endpoint.
	ExporterOTLP ExporterType = "otlp"

	// ExporterStdout exports to stdout.
	ExporterStdout ExporterType = "stdout"

	// ExporterNoop disables export.
	ExporterNoop ExporterType = "noop"
)

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "heapscope",
		ServiceVersion: "dev",
		Tracing: TracingConfig{
			Exporter:           ExporterNoop,
			SampleRate:         1.0,
			BatchTimeout:       5 * time.Second,
			MaxExportBatchSize: 512,
		},
	}
}

// Option configures the observability infrastructure.
type Option func(*Config)

// WithServiceName sets the service name.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithServiceVersion sets the service version.
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithTracing selects the exporter and endpoint.
func WithTracing(exporter ExporterType, endpoint string) Option {
	return func(c *Config) {
		c.Tracing.Exporter = exporter
		c.Tracing.Endpoint = endpoint
	}
}

// WithTracingInsecure disables TLS for tracing.
func WithTracingInsecure() Option {
	return func(c *Config) {
		c.Tracing.Insecure = true
	}
}

// WithSampleRate sets the trace sampling rate.
func WithSampleRate(rate float64) Option {
	return func(c *Config) {
		c.Tracing.SampleRate = rate
	}
}

// FromTracingConfig translates the agent's tracing section into options.
func FromTracingConfig(tc config.TracingConfig) []Option {
	opts := []Option{WithTracing(ExporterType(tc.Exporter), tc.Endpoint)}
	if tc.Insecure {
		opts = append(opts, WithTracingInsecure())
	}
	if tc.SampleRate > 0 {
		opts = append(opts, WithSampleRate(tc.SampleRate))
	}
	return opts
}
