package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestSetup_None(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), Config{Exporter: "none"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer shutdown()

	// Must return a noop provider.
	if _, ok := tp.(noop.TracerProvider); !ok {
		t.Fatalf("expected noop.TracerProvider, got %T", tp)
	}
}

func TestSetup_EmptyExporter(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), Config{Exporter: ""}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer shutdown()

	if _, ok := tp.(noop.TracerProvider); !ok {
		t.Fatalf("expected noop.TracerProvider, got %T", tp)
	}
}

func TestSetup_Stdout(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), Config{Exporter: "stdout", SampleRatio: 1.0}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer shutdown()

	// Must return a real (non-noop) provider.
	if _, ok := tp.(noop.TracerProvider); ok {
		t.Fatal("expected real TracerProvider, got noop")
	}

	// Must produce a tracer that creates valid spans.
	tracer := tp.Tracer("test")
	_, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	if !span.SpanContext().IsValid() {
		t.Fatal("expected valid SpanContext from stdout exporter")
	}
}

func TestSetup_UnknownExporter(t *testing.T) {
	_, _, err := Setup(context.Background(), Config{Exporter: "kafka"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestSetup_ResourceAttributes(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), Config{
		Exporter:          "stdout",
		ServiceVersion:    "v1.2.3",
		SourceDriver:      "odbc",
		DestinationDriver: "mysql",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer shutdown()

	_, span := Tracer(tp).Start(context.Background(), "rowsync.cycle")
	defer span.End()
	if !span.SpanContext().IsValid() {
		t.Fatal("expected valid SpanContext")
	}
}

func TestTracer_NilProvider(t *testing.T) {
	var tracer trace.Tracer = Tracer(nil)
	if tracer == nil {
		t.Fatal("expected tracer from the global provider")
	}
}
