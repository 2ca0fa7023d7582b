package rowsyncerr

import (
	"errors"
	"fmt"
)

// ErrSourceFileMissing is wrapped by ConfigurationError when the source
// database file does not exist.
var ErrSourceFileMissing = errors.New("source database file not found")

// ConfigurationError reports an invalid configuration detected at startup.
// It is fatal: the daemon never enters its polling loop.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// SchemaError indicates that the destination table could not be created or
// altered. It is fatal at startup.
type SchemaError struct {
	Table     string
	Statement string
	Err       error
}

func (e *SchemaError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("schema %s: %q: %v", e.Table, e.Statement, e.Err)
	}
	return fmt.Sprintf("schema %s: %v", e.Table, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// SourceUnavailableError indicates that the source could not be reached or
// queried during one cycle. The cycle treats it as "no new rows".
type SourceUnavailableError struct {
	Driver string
	Op     string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable (%s): %v", e.Driver, e.Op, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// DestinationUnavailableError indicates a destination connect, query or commit
// failure. The sync loop reacts by replacing the destination connection.
type DestinationUnavailableError struct {
	Op  string
	Err error
}

func (e *DestinationUnavailableError) Error() string {
	return fmt.Sprintf("destination unavailable (%s): %v", e.Op, e.Err)
}

func (e *DestinationUnavailableError) Unwrap() error {
	return e.Err
}

// RowApplyError indicates that a single row could not be written. Sibling
// rows in the same batch are unaffected.
type RowApplyError struct {
	Table string
	ID    any
	Err   error
}

func (e *RowApplyError) Error() string {
	return fmt.Sprintf("%s[id=%v]: %v", e.Table, e.ID, e.Err)
}

func (e *RowApplyError) Unwrap() error {
	return e.Err
}

// WrapRow wraps err with the destination table and the row's identity value,
// so that a failed row can be located from the log line alone.
func WrapRow(err error, table string, id any) error {
	return &RowApplyError{Table: table, ID: id, Err: err}
}

// IsFatal reports whether err must stop the daemon before it starts polling.
func IsFatal(err error) bool {
	var cfgErr *ConfigurationError
	var schemaErr *SchemaError
	return errors.As(err, &cfgErr) || errors.As(err, &schemaErr)
}
