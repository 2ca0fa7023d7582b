// Package dialect isolates the SQL differences between the supported
// destination databases: identifier quoting, placeholders, catalog queries,
// column types and the idempotent-insert clause.
package dialect

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ColumnType is the logical type the schema policy assigns to a destination
// column. Each dialect renders it to concrete DDL.
type ColumnType int

const (
	TypeString   ColumnType = iota // variable-length string (255)
	TypeIdentity                   // integer, primary key, not null
	TypeInteger
	TypeDateTime
	TypeFlag // small integer with 0/1 semantics
)

func (t ColumnType) String() string {
	switch t {
	case TypeIdentity:
		return "identity"
	case TypeInteger:
		return "integer"
	case TypeDateTime:
		return "datetime"
	case TypeFlag:
		return "flag"
	default:
		return "string"
	}
}

// Dialect describes one destination database flavour.
type Dialect interface {
	// Name is the configuration name: mysql, postgres or sqlite.
	Name() string
	// DriverName is the database/sql driver name registered for it.
	DriverName() string
	Quote(ident string) string
	// Placeholder returns the bind placeholder for the n-th argument (1-based).
	Placeholder(n int) string
	// TableExistsQuery takes the table name as its only argument and returns
	// a single count.
	TableExistsQuery() string
	// ColumnsQuery takes the table name as its only argument and returns one
	// column name per row.
	ColumnsQuery() string
	ColumnType(t ColumnType) string
	// ConflictClause is appended to an INSERT so that a duplicate identity
	// value affects zero rows instead of failing.
	ConflictClause(identityColumn string) string
	// ConflictNeedsKey reports whether ConflictClause must match a unique
	// constraint on the identity column. Without one every insert fails.
	ConflictNeedsKey() bool
	// RowSavepoints reports whether a failed statement aborts the enclosing
	// transaction, so each row needs its own savepoint.
	RowSavepoints() bool
	// IsConnError reports whether err means the connection itself is gone.
	IsConnError(err error) bool
}

var registry = map[string]Dialect{}

func register(d Dialect) {
	registry[d.Name()] = d
}

// ByName returns the dialect registered under name.
func ByName(name string) (Dialect, error) {
	d, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown destination driver %q (expected %s)", name, strings.Join(Names(), ", "))
	}
	return d, nil
}

// Names returns the registered dialect names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// InsertSQL builds the idempotent INSERT for table with columns in the given
// order.
func InsertSQL(d Dialect, table string, columns []string, identityColumn string) string {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
		placeholders[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) %s",
		d.Quote(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
		d.ConflictClause(identityColumn),
	)
}

// IsConnError reports whether err indicates a dead connection, using the
// database/sql sentinels first and the dialect's driver-specific checks after.
func IsConnError(d Dialect, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// database/sql does not export its closed-pool sentinel.
	if strings.Contains(err.Error(), "sql: database is closed") {
		return true
	}
	return d.IsConnError(err)
}

func quoteWith(ident, q string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}
