package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// TracerName is the instrumentation scope of agent spans.
const TracerName = "github.com/felixgeelhaar/heapscope"

// ErrUnknownExporter is returned for an unrecognized exporter type.
var ErrUnknownExporter = errors.New("unknown trace exporter type")

// Provider manages the tracing infrastructure.
type Provider struct {
	config         Config
	tracerProvider trace.TracerProvider
	shutdownFuncs  []func(context.Context) error
}

// New creates a new observability provider.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Tracing.Exporter {
	case ExporterOTLP:
		grpcOpts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Tracing.Endpoint),
		}
		if cfg.Tracing.Insecure {
			grpcOpts = append(grpcOpts,
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
				otlptracegrpc.WithInsecure(),
			)
		}
		exp, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		exporter = exp

	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		exporter = exp

	case ExporterNoop, "":
		return NewNoopProvider(), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, cfg.Tracing.Exporter)
	}

	return NewWithExporter(cfg, exporter), nil
}

// NewWithExporter creates a provider that batches spans to exporter.
func NewWithExporter(cfg Config, exporter sdktrace.SpanExporter) *Provider {
	// Not merged with resource.Default() to avoid schema URL conflicts.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	batchOpts := []sdktrace.BatchSpanProcessorOption{}
	if cfg.Tracing.BatchTimeout > 0 {
		batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(cfg.Tracing.BatchTimeout))
	}
	if cfg.Tracing.MaxExportBatchSize > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(cfg.Tracing.MaxExportBatchSize))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, batchOpts...),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.Tracing.SampleRate)),
	)

	return &Provider{
		config:         cfg,
		tracerProvider: tp,
		shutdownFuncs:  []func(context.Context) error{tp.Shutdown},
	}
}

// NewNoopProvider creates a provider whose spans are discarded.
func NewNoopProvider() *Provider {
	return &Provider{
		config:         DefaultConfig(),
		tracerProvider: noop.NewTracerProvider(),
	}
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Tracer returns the agent tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracerProvider.Tracer(TracerName)
}

// TracerProvider returns the underlying tracer provider.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tracerProvider
}

// Exporter returns the configured exporter type.
func (p *Provider) Exporter() ExporterType {
	return p.config.Tracing.Exporter
}

// InstallGlobal registers the provider and W3C propagators globally.
func (p *Provider) InstallGlobal() {
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Shutdown flushes pending spans and releases exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
