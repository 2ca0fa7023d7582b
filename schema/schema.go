// Package schema keeps the destination table in step with the field mapping.
// It creates the table when it is missing and adds mapped columns that are
// not there yet. Columns are never altered or dropped.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/florinutz/rowsync/dialect"
	"github.com/florinutz/rowsync/mapping"
	"github.com/florinutz/rowsync/rowsyncerr"
)

// DB is the subset of *sql.DB and *sql.Tx the reconciler needs.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ColumnDef is one destination column with its rendered DDL type.
type ColumnDef struct {
	Name string
	Type dialect.ColumnType
	DDL  string
	Rule string
}

// Result describes what Ensure changed.
type Result struct {
	Created bool
	Added   []string
}

// Changed reports whether Ensure issued any DDL.
func (r Result) Changed() bool { return r.Created || len(r.Added) > 0 }

// Reconciler ensures one destination table matches a mapping.
type Reconciler struct {
	dialect dialect.Dialect
	mapping *mapping.Mapping
	table   string
	policy  *Policy
	logger  *slog.Logger
}

// NewReconciler builds a reconciler for table. flagColumns may be nil to use
// DefaultFlagColumns.
func NewReconciler(d dialect.Dialect, m *mapping.Mapping, table string, flagColumns []string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		dialect: d,
		mapping: m,
		table:   table,
		policy:  NewPolicy(m.IdentityColumn(), flagColumns),
		logger:  logger.With("component", "schema", "table", table),
	}
}

// Columns returns the column definitions for every mapped column in mapping
// order, typed for a new table (creating) or for ADD COLUMN.
func (r *Reconciler) Columns(creating bool) []ColumnDef {
	cols := r.mapping.Columns()
	defs := make([]ColumnDef, len(cols))
	for i, c := range cols {
		t, rule := r.policy.TypeFor(c, creating)
		defs[i] = ColumnDef{Name: c, Type: t, DDL: r.dialect.ColumnType(t), Rule: rule}
	}
	return defs
}

// CreateTableSQL returns the CREATE TABLE statement Ensure issues when the
// table does not exist.
func (r *Reconciler) CreateTableSQL() string {
	defs := r.Columns(true)
	parts := make([]string, len(defs))
	for i, d := range defs {
		parts[i] = r.dialect.Quote(d.Name) + " " + d.DDL
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", r.dialect.Quote(r.table), strings.Join(parts, ",\n    "))
}

func (r *Reconciler) addColumnSQL(d ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", r.dialect.Quote(r.table), r.dialect.Quote(d.Name), d.DDL)
}

// uniqueIndexSQL keys column so the insert conflict clause has a constraint
// to match. Rows written before the column existed hold NULL, which a unique
// index accepts any number of times.
func (r *Reconciler) uniqueIndexSQL(column string) string {
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
		r.dialect.Quote(r.table+"_"+column+"_key"), r.dialect.Quote(r.table), r.dialect.Quote(column))
}

// Ensure creates the table or adds the missing mapped columns. Each statement
// runs on its own so DDL is committed as it goes. Every failure is returned
// as a *rowsyncerr.SchemaError.
func (r *Reconciler) Ensure(ctx context.Context, db DB) (Result, error) {
	var res Result

	exists, err := r.tableExists(ctx, db)
	if err != nil {
		return res, &rowsyncerr.SchemaError{Table: r.table, Statement: r.dialect.TableExistsQuery(), Err: err}
	}

	if !exists {
		stmt := r.CreateTableSQL()
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return res, &rowsyncerr.SchemaError{Table: r.table, Statement: stmt, Err: err}
		}
		res.Created = true
		r.logger.Info("created destination table", "columns", r.mapping.Len())
		return res, nil
	}

	existing, err := r.existingColumns(ctx, db)
	if err != nil {
		return res, &rowsyncerr.SchemaError{Table: r.table, Statement: r.dialect.ColumnsQuery(), Err: err}
	}

	for _, d := range r.Columns(false) {
		if existing[strings.ToLower(d.Name)] {
			continue
		}
		stmt := r.addColumnSQL(d)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return res, &rowsyncerr.SchemaError{Table: r.table, Statement: stmt, Err: err}
		}
		res.Added = append(res.Added, d.Name)
		r.logger.Info("added destination column", "column", d.Name, "type", d.DDL)
		if !r.policy.IsIdentity(d.Name) {
			continue
		}
		if !r.dialect.ConflictNeedsKey() {
			r.logger.Warn("identity column added without a primary key, duplicate rows will not be detected",
				"column", d.Name)
			continue
		}
		idx := r.uniqueIndexSQL(d.Name)
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return res, &rowsyncerr.SchemaError{Table: r.table, Statement: idx, Err: err}
		}
		r.logger.Warn("identity column added without a primary key, keyed with a unique index instead",
			"column", d.Name)
	}

	if !res.Changed() {
		r.logger.Debug("destination table up to date")
	}
	return res, nil
}

func (r *Reconciler) tableExists(ctx context.Context, db DB) (bool, error) {
	var n int
	if err := db.QueryRowContext(ctx, r.dialect.TableExistsQuery(), r.table).Scan(&n); err != nil {
		return false, fmt.Errorf("check table exists: %w", err)
	}
	return n > 0, nil
}

func (r *Reconciler) existingColumns(ctx context.Context, db DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, r.dialect.ColumnsQuery(), r.table)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return cols, nil
}
