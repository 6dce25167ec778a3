package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "greenlight"

// StartDecisionSpan starts a span covering one action's path through the
// pipeline, from submission to terminal decision.
func StartDecisionSpan(ctx context.Context, requestID, kind, criticality string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "decision",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("action.kind", kind),
			attribute.String("action.criticality", criticality),
		),
	)
}

// StartExecuteSpan starts a span for executing an approved action.
func StartExecuteSpan(ctx context.Context, requestID, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "execute",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("action.kind", kind),
		),
	)
}

// StartAlertSpan starts a span for one alert channel delivery.
func StartAlertSpan(ctx context.Context, requestID, channel string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "alert",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("alert.channel", channel),
		),
	)
}
