package dlq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/florinutz/rowsync/record"
)

func testRow(t *testing.T) record.Row {
	t.Helper()
	row, err := record.New([]string{"f_RecID", "f_CardNO"}, []any{int64(42), "A-100"})
	if err != nil {
		t.Fatal(err)
	}
	return row
}

func TestWriterDLQ_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	d := NewWriterDLQ(&buf, nil)

	ctx := context.Background()
	if err := d.Record(ctx, "access_logs", int64(42), testRow(t), errors.New("datatype mismatch")); err != nil {
		t.Fatal(err)
	}
	if err := d.Record(ctx, "access_logs", int64(43), testRow(t), errors.New("too long")); err != nil {
		t.Fatal(err)
	}

	sc := bufio.NewScanner(&buf)
	var recs []Record
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		recs = append(recs, r)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Table != "access_logs" || recs[0].Error != "datatype mismatch" {
		t.Errorf("record = %+v", recs[0])
	}
	if recs[0].Row["f_CardNO"] != "A-100" {
		t.Errorf("row = %v", recs[0].Row)
	}
	// JSON numbers decode as float64.
	if recs[1].ID != float64(43) {
		t.Errorf("id = %v", recs[1].ID)
	}
	if recs[0].Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestFileDLQ_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dead.jsonl")

	for i := 0; i < 2; i++ {
		d, err := New("file", path, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := d.Record(context.Background(), "access_logs", i, testRow(t), errors.New("failed")); err != nil {
			t.Fatal(err)
		}
		if err := d.Close(); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := bytes.Count(data, []byte("\n")); n != 2 {
		t.Errorf("file has %d lines, want 2", n)
	}
}

func TestNew(t *testing.T) {
	if d, err := New("none", "", nil); err != nil {
		t.Fatal(err)
	} else if _, ok := d.(NopDLQ); !ok {
		t.Errorf("none = %T", d)
	}
	if d, err := New("log", "", nil); err != nil {
		t.Fatal(err)
	} else if _, ok := d.(*LogDLQ); !ok {
		t.Errorf("log = %T", d)
	}
	if _, err := New("file", "", nil); err == nil {
		t.Error("file sink without a path should fail")
	}
	if _, err := New("kafka", "", nil); err == nil {
		t.Error("unknown sink type should fail")
	}
}

func TestLogDLQ_UsesLoggerOutput(t *testing.T) {
	// Stands in for the configured log_file.
	var logFile bytes.Buffer
	d, err := New("log", "", slog.New(slog.NewJSONHandler(&logFile, nil)))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Record(context.Background(), "access_logs", int64(42), testRow(t), errors.New("datatype mismatch")); err != nil {
		t.Fatal(err)
	}

	var line struct {
		Level string         `json:"level"`
		Msg   string         `json:"msg"`
		Table string         `json:"table"`
		ID    float64        `json:"id"`
		Row   map[string]any `json:"row"`
		Error string         `json:"error"`
	}
	if err := json.Unmarshal(logFile.Bytes(), &line); err != nil {
		t.Fatalf("log output %q: %v", logFile.String(), err)
	}
	if line.Level != "ERROR" || line.Msg != "dead letter" || line.Table != "access_logs" || line.ID != 42 {
		t.Errorf("log record = %+v", line)
	}
	if line.Row["f_CardNO"] != "A-100" || line.Error != "datatype mismatch" {
		t.Errorf("row = %v, error = %q", line.Row, line.Error)
	}
}
