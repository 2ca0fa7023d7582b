package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/florinutz/rowsync/metrics"
	"github.com/florinutz/rowsync/record"
)

// Record stores a row that could not be written, for later inspection or
// manual replay.
type Record struct {
	Table     string         `json:"table"`
	ID        any            `json:"id"`
	Row       map[string]any `json:"row"`
	Error     string         `json:"error"`
	Timestamp time.Time      `json:"timestamp"`
}

// DLQ receives rows that failed to apply.
type DLQ interface {
	Record(ctx context.Context, table string, id any, row record.Row, err error) error
	Close() error
}

// New returns the sink for typ: "log" (an error record on logger, so it lands
// wherever the daemon logs), "file" (JSON lines appended to path) or "none".
func New(typ, path string, logger *slog.Logger) (DLQ, error) {
	switch typ {
	case "", "log":
		return NewLogDLQ(logger), nil
	case "file":
		return NewFileDLQ(path, logger)
	case "none":
		return NopDLQ{}, nil
	default:
		return nil, fmt.Errorf("unknown dead letter type %q (expected log, file, none)", typ)
	}
}

// ── WriterDLQ ───────────────────────────────────────────────────────────────

// WriterDLQ writes failed rows as JSON lines to an io.Writer.
type WriterDLQ struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	logger *slog.Logger
}

// NewWriterDLQ creates a DLQ that writes JSON lines to w.
func NewWriterDLQ(w io.Writer, logger *slog.Logger) *WriterDLQ {
	if logger == nil {
		logger = slog.Default()
	}
	return &WriterDLQ{enc: json.NewEncoder(w), logger: logger}
}

// NewFileDLQ creates a DLQ that appends JSON lines to the file at path.
func NewFileDLQ(path string, logger *slog.Logger) (*WriterDLQ, error) {
	if path == "" {
		return nil, fmt.Errorf("file dead letter sink requires a path")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dead letter file: %w", err)
	}
	d := NewWriterDLQ(f, logger)
	d.closer = f
	return d, nil
}

func (d *WriterDLQ) Record(_ context.Context, table string, id any, row record.Row, err error) error {
	rec := Record{
		Table:     table,
		ID:        id,
		Row:       row.Map(),
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if encErr := d.enc.Encode(rec); encErr != nil {
		metrics.DeadLetterErrors.Inc()
		return fmt.Errorf("encode dead letter: %w", encErr)
	}
	metrics.DeadLetters.WithLabelValues(table).Inc()
	d.logger.Debug("row recorded to dead letter sink", "table", table, "id", id)
	return nil
}

func (d *WriterDLQ) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closer == nil {
		return nil
	}
	err := d.closer.Close()
	d.closer = nil
	return err
}

// ── LogDLQ ──────────────────────────────────────────────────────────────────

// LogDLQ reports each failed row as one error-level log record carrying the
// full row.
type LogDLQ struct {
	logger *slog.Logger
}

// NewLogDLQ creates a DLQ that writes to logger.
func NewLogDLQ(logger *slog.Logger) *LogDLQ {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDLQ{logger: logger.With("component", "dead_letter")}
}

func (d *LogDLQ) Record(ctx context.Context, table string, id any, row record.Row, err error) error {
	d.logger.ErrorContext(ctx, "dead letter",
		"table", table,
		"id", id,
		"row", row.Map(),
		"error", err.Error(),
	)
	metrics.DeadLetters.WithLabelValues(table).Inc()
	return nil
}

func (*LogDLQ) Close() error { return nil }

// ── NopDLQ ──────────────────────────────────────────────────────────────────

// NopDLQ discards all failed rows (dead_letter.type: none).
type NopDLQ struct{}

func (NopDLQ) Record(context.Context, string, any, record.Row, error) error { return nil }
func (NopDLQ) Close() error                                                 { return nil }
