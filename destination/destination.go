// Package destination reads the sync cursor from, and writes fetched rows
// into, the destination table.
package destination

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/florinutz/rowsync/dialect"
	"github.com/florinutz/rowsync/dlq"
	"github.com/florinutz/rowsync/mapping"
	"github.com/florinutz/rowsync/record"
	"github.com/florinutz/rowsync/rowsyncerr"
)

const savepoint = "rowsync_row"

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner is satisfied by *sql.DB and *sql.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// ApplyResult summarizes one Apply call.
type ApplyResult struct {
	// Inserted is the total number of affected rows reported by the driver.
	Inserted int64
	// Duplicates counts rows whose identity was already present.
	Duplicates int
	// Failed counts rows that could not be written.
	Failed int
}

// Open connects to the destination and verifies the connection within
// timeout. The pool is limited to a single connection: the daemon writes from
// one goroutine and replaces the whole handle on failure.
func Open(ctx context.Context, d dialect.Dialect, dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, &rowsyncerr.DestinationUnavailableError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &rowsyncerr.DestinationUnavailableError{Op: "connect", Err: err}
	}
	return db, nil
}

// Table is the destination table the mapped rows are written to.
type Table struct {
	dialect   dialect.Dialect
	mapping   *mapping.Mapping
	name      string
	insertSQL string
	dlq       dlq.DLQ
	logger    *slog.Logger
}

// Option configures a Table.
type Option func(*Table)

// WithDeadLetter sends rows that fail to apply to d.
func WithDeadLetter(d dlq.DLQ) Option {
	return func(t *Table) { t.dlq = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Table) { t.logger = l }
}

// NewTable returns the writer for table name.
func NewTable(d dialect.Dialect, m *mapping.Mapping, name string, opts ...Option) *Table {
	t := &Table{
		dialect:   d,
		mapping:   m,
		name:      name,
		insertSQL: dialect.InsertSQL(d, name, m.Columns(), m.IdentityColumn()),
		dlq:       dlq.NopDLQ{},
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	t.logger = t.logger.With("component", "destination", "table", name)
	return t
}

// LastID returns the highest identity value present in the table, or 0 when
// the table is empty. It is read fresh every time.
func (t *Table) LastID(ctx context.Context, q Querier) (int64, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s",
		t.dialect.Quote(t.mapping.IdentityColumn()), t.dialect.Quote(t.name))

	var id sql.NullInt64
	if err := q.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return 0, &rowsyncerr.DestinationUnavailableError{Op: "read cursor", Err: err}
	}
	return id.Int64, nil
}

// Apply writes rows in order inside a single transaction. A row that fails
// is logged, recorded to the dead letter sink and skipped; its siblings are
// still committed. A lost connection, or a failure to begin or commit, aborts
// the whole batch with a *rowsyncerr.DestinationUnavailableError.
func (t *Table) Apply(ctx context.Context, db TxBeginner, rows []record.Row) (ApplyResult, error) {
	var res ApplyResult
	if len(rows) == 0 {
		return res, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return res, &rowsyncerr.DestinationUnavailableError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, t.insertSQL)
	if err != nil {
		return res, &rowsyncerr.DestinationUnavailableError{Op: "prepare", Err: err}
	}
	defer func() { _ = stmt.Close() }()

	fields := t.mapping.SourceFields()
	for _, row := range rows {
		id, _ := row.Get(t.mapping.IdentityField())

		n, err := t.applyRow(ctx, tx, stmt, fields, row)
		if err != nil {
			if dialect.IsConnError(t.dialect, err) {
				return res, &rowsyncerr.DestinationUnavailableError{Op: "insert", Err: err}
			}
			res.Failed++
			rowErr := rowsyncerr.WrapRow(err, t.name, id)
			t.logger.ErrorContext(ctx, "row insert failed", "id", id, "error", rowErr)
			if dlqErr := t.dlq.Record(ctx, t.name, id, row, rowErr); dlqErr != nil {
				t.logger.Warn("dead letter record failed", "id", id, "error", dlqErr)
			}
			continue
		}
		if n == 0 {
			res.Duplicates++
		}
		res.Inserted += n
	}

	if err := tx.Commit(); err != nil {
		return res, &rowsyncerr.DestinationUnavailableError{Op: "commit", Err: err}
	}
	return res, nil
}

// applyRow inserts one row and returns the affected row count. On dialects
// where a failed statement aborts the transaction the insert runs under a
// savepoint that is rolled back on failure.
func (t *Table) applyRow(ctx context.Context, tx *sql.Tx, stmt *sql.Stmt, fields []string, row record.Row) (int64, error) {
	values, err := row.Values(fields)
	if err != nil {
		return 0, err
	}

	if !t.dialect.RowSavepoints() {
		return execAffected(ctx, stmt, values)
	}

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return 0, err
	}
	n, err := execAffected(ctx, stmt, values)
	if err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			return 0, rbErr
		}
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return 0, err
	}
	return n, nil
}

func execAffected(ctx context.Context, stmt *sql.Stmt, values []any) (int64, error) {
	r, err := stmt.ExecContext(ctx, values...)
	if err != nil {
		return 0, err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
