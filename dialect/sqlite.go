package dialect

import (
	"fmt"

	_ "modernc.org/sqlite"
)

func init() { register(SQLite{}) }

// SQLite is the dialect for SQLite destinations (modernc.org/sqlite, no cgo).
// It is mostly useful for local runs and tests.
type SQLite struct{}

func (SQLite) Name() string              { return "sqlite" }
func (SQLite) DriverName() string        { return "sqlite" }
func (SQLite) Quote(ident string) string { return quoteWith(ident, `"`) }
func (SQLite) Placeholder(int) string    { return "?" }
func (SQLite) RowSavepoints() bool       { return false }
func (SQLite) ConflictNeedsKey() bool    { return true }
func (SQLite) IsConnError(error) bool    { return false }

func (SQLite) TableExistsQuery() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
}

func (SQLite) ColumnsQuery() string {
	return "SELECT name FROM pragma_table_info(?)"
}

func (SQLite) ColumnType(t ColumnType) string {
	switch t {
	case TypeIdentity:
		return "INTEGER NOT NULL PRIMARY KEY"
	case TypeInteger:
		return "INTEGER"
	case TypeDateTime:
		return "DATETIME"
	case TypeFlag:
		return "SMALLINT"
	default:
		return "VARCHAR(255)"
	}
}

func (d SQLite) ConflictClause(identityColumn string) string {
	return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", d.Quote(identityColumn))
}
