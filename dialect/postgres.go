package dialect

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func init() { register(Postgres{}) }

// Postgres is the dialect for PostgreSQL destinations, driven through the
// pgx database/sql adapter.
type Postgres struct{}

func (Postgres) Name() string           { return "postgres" }
func (Postgres) DriverName() string     { return "pgx" }
func (Postgres) RowSavepoints() bool    { return true }
func (Postgres) ConflictNeedsKey() bool { return true }

func (Postgres) Quote(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

func (Postgres) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (Postgres) TableExistsQuery() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
}

func (Postgres) ColumnsQuery() string {
	return "SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1"
}

func (Postgres) ColumnType(t ColumnType) string {
	switch t {
	case TypeIdentity:
		return "INTEGER NOT NULL PRIMARY KEY"
	case TypeInteger:
		return "INTEGER"
	case TypeDateTime:
		return "TIMESTAMP"
	case TypeFlag:
		return "SMALLINT"
	default:
		return "VARCHAR(255)"
	}
}

func (d Postgres) ConflictClause(identityColumn string) string {
	return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", d.Quote(identityColumn))
}

func (Postgres) IsConnError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. Everything else came back from a
		// live server.
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}
