// Package logger decorates log entries with request trace context.
package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// WithTrace returns log with trace_id/span_id fields attached when the
// context carries a valid span.
func WithTrace(ctx context.Context, log *zap.Logger) *zap.Logger {
	if ctx == nil {
		return log
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// FromContext returns the global logger with trace context attached.
func FromContext(ctx context.Context) *zap.Logger {
	return WithTrace(ctx, zap.L())
}
