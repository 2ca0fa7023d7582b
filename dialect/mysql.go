package dialect

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

func init() { register(MySQL{}) }

// MySQL is the dialect for MySQL and MariaDB destinations.
type MySQL struct{}

func (MySQL) Name() string              { return "mysql" }
func (MySQL) DriverName() string        { return "mysql" }
func (MySQL) Quote(ident string) string { return quoteWith(ident, "`") }
func (MySQL) Placeholder(int) string    { return "?" }
func (MySQL) RowSavepoints() bool       { return false }

// ConflictNeedsKey is false: without a key ON DUPLICATE KEY UPDATE is a plain
// insert.
func (MySQL) ConflictNeedsKey() bool { return false }

func (MySQL) TableExistsQuery() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
}

func (MySQL) ColumnsQuery() string {
	return "SELECT column_name FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ?"
}

func (MySQL) ColumnType(t ColumnType) string {
	switch t {
	case TypeIdentity:
		return "INT NOT NULL PRIMARY KEY"
	case TypeInteger:
		return "INT"
	case TypeDateTime:
		return "DATETIME"
	case TypeFlag:
		return "TINYINT(1)"
	default:
		return "VARCHAR(255)"
	}
}

// ConflictClause rewrites the identity column to itself. MySQL reports zero
// affected rows for an update that changes nothing.
func (d MySQL) ConflictClause(identityColumn string) string {
	q := d.Quote(identityColumn)
	return fmt.Sprintf("ON DUPLICATE KEY UPDATE %s = %s", q, q)
}

func (MySQL) IsConnError(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// MySQLDSN builds a go-sql-driver DSN from discrete connection settings.
// Times are parsed into time.Time and the connection uses utf8mb4.
func MySQLDSN(host string, port int, user, password, database string, timeout time.Duration) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = database
	cfg.ParseTime = true
	cfg.Timeout = timeout
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}
