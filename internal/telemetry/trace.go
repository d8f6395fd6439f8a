package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartRequestSpan creates a client span for one backend request.
//
// Usage:
//
//	ctx, span := telemetry.StartRequestSpan(ctx, "profile", req.Method, req.URL.Path)
//	defer span.End()
func StartRequestSpan(ctx context.Context, target, method, path string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("transport")
	ctx, span := tracer.Start(ctx, "http."+method,
		trace.WithSpanKind(trace.SpanKindClient),
	)

	span.SetAttributes(
		attribute.String("target", target),
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("component", "transport"),
	)

	return ctx, span
}

// StartOperationSpan creates a span for an auth operation such as login.
func StartOperationSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("auth")
	ctx, span := tracer.Start(ctx, "auth."+operation)

	span.SetAttributes(
		attribute.String("operation", operation),
		attribute.String("component", "auth"),
	)

	return ctx, span
}

// StartCommandSpan creates a span for a CLI command execution.
func StartCommandSpan(ctx context.Context, cmdName string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("commands")
	ctx, span := tracer.Start(ctx, "command."+cmdName)

	span.SetAttributes(
		attribute.String("command", cmdName),
		attribute.String("component", "cli"),
	)

	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
// This should be called when an operation fails.
//
// Usage:
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	    return err
//	}
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.Bool("error", true),
	)
}

// RecordDuration records the duration of an operation as a span attribute.
func RecordDuration(span trace.Span, name string, duration time.Duration) {
	span.SetAttributes(
		attribute.Int64(name+"_ms", duration.Milliseconds()),
	)
}
