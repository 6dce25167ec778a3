// Package otel provides metric instruments, spans and HTTP instrumentation.
// Tracer provider setup is deferred to the deployment; without one the spans
// are no-ops and the instruments record into the global meter.
package otel

import (
	"context"
	"log/slog"
)

// ShutdownFunc is called to flush and shut down the trace provider.
type ShutdownFunc func(ctx context.Context) error

// InitTracer returns a no-op shutdown function. Deployments that run an
// OTLP collector install their own TracerProvider before calling this.
func InitTracer(serviceName string) ShutdownFunc {
	slog.Info("otel tracer using global provider", "service", serviceName)
	return func(_ context.Context) error {
		return nil
	}
}
