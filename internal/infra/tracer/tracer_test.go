package tracer

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"promptmatrix/internal/infra/config"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer shutdown(context.Background())

	tp := otel.GetTracerProvider()
	if _, ok := tp.(noop.TracerProvider); !ok {
		t.Errorf("expected noop provider, got %T", tp)
	}
}

func TestSetupStdout(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "stdout"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer shutdown(context.Background())
}

func TestSetupUnsupportedExporter(t *testing.T) {
	_, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "invalid"})
	if err == nil {
		t.Error("expected error for unsupported exporter")
	}
}

func TestStartSpanAndHelpers(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	ctx, span := StartSpan(context.Background(), "test-span")
	if ctx == nil {
		t.Error("context should not be nil")
	}

	SetOK(span)
	RecordError(span, errors.New("test error"))
	span.End()

	if string(StringAttr("key", "v").Key) != "key" {
		t.Error("StringAttr key mismatch")
	}
	if string(IntAttr("count", 42).Key) != "count" {
		t.Error("IntAttr key mismatch")
	}
}
