package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type cycleIDKey struct{}

// WithCycleID returns a context carrying the id of the current sync cycle.
// Every record logged with that context gets a cycle_id attribute.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, id)
}

// CycleID returns the cycle id stored by WithCycleID, or "".
func CycleID(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey{}).(string)
	return id
}

// TracingHandler wraps a slog.Handler and injects trace_id and span_id
// attributes when a valid OTel span context is present in the context, and
// cycle_id when the context belongs to a sync cycle.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler creates a TracingHandler that wraps inner.
func NewTracingHandler(inner slog.Handler) *TracingHandler {
	return &TracingHandler{inner: inner}
}

func (h *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *TracingHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := CycleID(ctx); id != "" {
		r.AddAttrs(slog.String("cycle_id", id))
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.inner.Handle(ctx, r)
}

func (h *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: h.inner.WithGroup(name)}
}
