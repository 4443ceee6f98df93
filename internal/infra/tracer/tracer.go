// Package tracer wires OpenTelemetry into promptmatrix. Spans are opened
// around the three operations worth inspecting locally: routing a request,
// calling the completion API, and running a flow.
package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"promptmatrix/internal/infra/config"
)

// tracerName labels every span emitted by this process.
const tracerName = "promptmatrix"

// Setup installs the global TracerProvider per cfg and returns a shutdown
// function that flushes buffered spans. Tracing is off unless the config
// enables it; the only real exporter is stdout, meant for reading routing
// and flow spans during local runs.
func Setup(ctx context.Context, cfg config.TracerConfig) (func(context.Context) error, error) {
	if !cfg.Enabled || cfg.Exporter == "" || cfg.Exporter == "noop" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}
	if cfg.Exporter != "stdout" {
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// StartSpan opens a span on the promptmatrix tracer. Initial attributes go
// through trace.WithAttributes.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// RecordError attaches err to the span and marks it failed.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as completed successfully.
func SetOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// StringAttr builds a string span attribute, sparing call sites the
// attribute package import.
func StringAttr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// IntAttr builds an int span attribute.
func IntAttr(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}
