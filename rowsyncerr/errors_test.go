package rowsyncerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/florinutz/rowsync/rowsyncerr"
)

func TestConfigurationError(t *testing.T) {
	err := &rowsyncerr.ConfigurationError{Field: "mapping", Reason: "3 fields but 2 mapped columns"}

	want := "configuration mapping: 3 fields but 2 mapped columns"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	var target *rowsyncerr.ConfigurationError
	if !errors.As(fmt.Errorf("startup: %w", err), &target) {
		t.Fatal("errors.As should match ConfigurationError through wrapping")
	}
	if target.Field != "mapping" {
		t.Errorf("Field = %q, want mapping", target.Field)
	}
}

func TestConfigurationError_SourceFileMissing(t *testing.T) {
	err := &rowsyncerr.ConfigurationError{
		Field:  "source.file_path",
		Reason: "/data/swipe.mdb",
		Err:    rowsyncerr.ErrSourceFileMissing,
	}
	if !errors.Is(err, rowsyncerr.ErrSourceFileMissing) {
		t.Error("errors.Is should match ErrSourceFileMissing via Unwrap")
	}
}

func TestSchemaError(t *testing.T) {
	cause := fmt.Errorf("ALTER command denied")
	err := &rowsyncerr.SchemaError{
		Table:     "access_logs",
		Statement: "ALTER TABLE access_logs ADD COLUMN card_id INT",
		Err:       cause,
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should match underlying cause via Unwrap")
	}
	if !rowsyncerr.IsFatal(fmt.Errorf("ensure schema: %w", err)) {
		t.Error("SchemaError should be fatal")
	}
}

func TestSourceUnavailableError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := &rowsyncerr.SourceUnavailableError{Driver: "odbc", Op: "connect", Err: cause}

	want := "source odbc unavailable (connect): connection refused"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should match underlying cause via Unwrap")
	}
	if rowsyncerr.IsFatal(err) {
		t.Error("SourceUnavailableError must not be fatal")
	}
}

func TestDestinationUnavailableError(t *testing.T) {
	cause := fmt.Errorf("broken pipe")
	err := &rowsyncerr.DestinationUnavailableError{Op: "commit", Err: cause}

	var target *rowsyncerr.DestinationUnavailableError
	if !errors.As(fmt.Errorf("cycle: %w", err), &target) {
		t.Fatal("errors.As should match DestinationUnavailableError")
	}
	if target.Op != "commit" {
		t.Errorf("Op = %q, want commit", target.Op)
	}
	if rowsyncerr.IsFatal(err) {
		t.Error("DestinationUnavailableError must not be fatal")
	}
}

func TestWrapRow(t *testing.T) {
	cause := fmt.Errorf("incorrect datetime value")

	err := rowsyncerr.WrapRow(cause, "access_logs", int64(42))

	want := `access_logs[id=42]: incorrect datetime value`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should match underlying cause via Unwrap")
	}

	var target *rowsyncerr.RowApplyError
	if !errors.As(err, &target) {
		t.Fatal("errors.As should match RowApplyError")
	}
	if target.ID != int64(42) {
		t.Errorf("ID = %v, want 42", target.ID)
	}
}
