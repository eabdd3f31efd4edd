// Package application provides the agent loop, the command interpreter and
// the lifecycle controller that ties them to a transport.
package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/felixgeelhaar/heapscope/domain/agent"
	"github.com/felixgeelhaar/heapscope/domain/diagnostics"
	"github.com/felixgeelhaar/heapscope/infrastructure/logging"
	"github.com/felixgeelhaar/heapscope/infrastructure/observability"
	"github.com/felixgeelhaar/heapscope/infrastructure/telemetry"
)

// Interpreter maps command tokens to actions on the diagnostics
// collaborators. It holds no state of its own.
type Interpreter struct {
	tracer    diagnostics.AllocationTracer
	collector diagnostics.Collector
	snapshots diagnostics.SnapshotProducer
	metrics   telemetry.Metrics
	spans     trace.Tracer
}

// InterpreterConfig contains the interpreter's collaborators.
type InterpreterConfig struct {
	Tracer    diagnostics.AllocationTracer
	Collector diagnostics.Collector
	Snapshots diagnostics.SnapshotProducer
	Metrics   telemetry.Metrics
	Spans     trace.Tracer
}

// NewInterpreter creates an interpreter. Tracer, Collector and Snapshots
// are required.
func NewInterpreter(config InterpreterConfig) (*Interpreter, error) {
	if config.Tracer == nil {
		return nil, fmt.Errorf("%w: allocation tracer", agent.ErrMissingCollaborator)
	}
	if config.Collector == nil {
		return nil, fmt.Errorf("%w: collector", agent.ErrMissingCollaborator)
	}
	if config.Snapshots == nil {
		return nil, fmt.Errorf("%w: snapshot producer", agent.ErrMissingCollaborator)
	}

	i := &Interpreter{
		tracer:    config.Tracer,
		collector: config.Collector,
		snapshots: config.Snapshots,
		metrics:   config.Metrics,
		spans:     config.Spans,
	}
	if i.metrics == nil {
		i.metrics = telemetry.NoopMetricsProvider{}
	}
	if i.spans == nil {
		i.spans = noop.NewTracerProvider().Tracer(observability.TracerName)
	}
	return i, nil
}

// Dispatch executes cmd. CommandNone is a no-op and unknown tokens are
// ignored; only a failing side effect returns an error.
func (i *Interpreter) Dispatch(ctx context.Context, cmd agent.Command) (err error) {
	if cmd.IsNone() {
		return nil
	}

	ctx, span := observability.StartCommandSpan(ctx, i.spans, cmd)
	defer func() {
		i.metrics.RecordCommand(ctx, cmd, err)
		observability.EndSpan(span, err)
	}()

	switch cmd {
	case agent.CommandStartMemoryProfile:
		i.tracer.Enable()
	case agent.CommandStopMemoryProfile:
		i.tracer.Disable()
	case agent.CommandTriggerGC:
		if err := i.collector.CollectNow(); err != nil {
			return fmt.Errorf("trigger gc: %w", err)
		}
	case agent.CommandObjectSpaceSnapshot:
		if err := i.snapshots.DumpAndPublish(ctx); err != nil {
			return fmt.Errorf("objectspace snapshot: %w", err)
		}
	default:
		logging.Debug().
			Add(logging.Component("interpreter")).
			Add(logging.Command(cmd)).
			Msg("ignoring unknown command")
		return nil
	}

	logging.Debug().
		Add(logging.Component("interpreter")).
		Add(logging.Command(cmd)).
		Msg("command dispatched")
	return nil
}
