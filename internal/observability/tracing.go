package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "socialsync"

// Tracer returns the process tracer. Without InitTracing it is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTracing installs a tracer provider. When stdout is false nothing is
// exported and the returned shutdown is a no-op.
func InitTracing(stdout bool) (func(context.Context) error, error) {
	if !stdout {
		return func(context.Context) error { return nil }, nil
	}
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create tracing exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// StartReactorSpan starts a span for one reactor invocation.
func StartReactorSpan(ctx context.Context, reactor, eventID string) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, "reactor."+reactor, trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("reactor.name", reactor),
		attribute.String("event.id", eventID),
	)
	return ctx, span
}

// EndSpan records err, if any, and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
