package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/heapscope/domain/agent"
)

// SpanCommand is the name of the span wrapping one dispatched command.
const SpanCommand = "heapscope.command"

// StartCommandSpan starts a span for dispatching cmd.
func StartCommandSpan(ctx context.Context, tracer trace.Tracer, cmd agent.Command) (context.Context, trace.Span) {
	return tracer.Start(ctx, SpanCommand,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("heapscope.command", cmd.String()),
			attribute.Bool("heapscope.command.known", cmd.IsKnown()),
		),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
