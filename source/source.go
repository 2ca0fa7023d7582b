// Package source reads new rows from the legacy source table. Every fetch
// opens its own connection and closes it before returning; the source is
// expected to be offline from time to time.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/florinutz/rowsync/mapping"
	"github.com/florinutz/rowsync/record"
	"github.com/florinutz/rowsync/rowsyncerr"
)

const defaultConnectTimeout = time.Second

// invalidPassword is the Access ODBC driver's message for a wrong database
// password.
const invalidPassword = "Not a valid password"

// Result is the outcome of one fetch. Rows is empty when the source was
// unavailable; Unavailable then holds a *rowsyncerr.SourceUnavailableError.
type Result struct {
	Rows        []record.Row
	Unavailable error
}

// OK reports whether the source was read successfully, possibly with zero
// rows.
func (r Result) OK() bool { return r.Unavailable == nil }

// Config describes the source table.
type Config struct {
	Driver string
	// DSN overrides the connection string built from Path and Password.
	DSN            string
	Path           string
	Password       string
	Table          string
	ConnectTimeout time.Duration
}

// Fetcher selects the mapped fields of rows newer than a cursor.
type Fetcher struct {
	driver  Driver
	dsn     string
	table   string
	timeout time.Duration
	mapping *mapping.Mapping
	query   string
	logger  *slog.Logger
}

// NewFetcher validates cfg and builds the fetch query.
func NewFetcher(cfg Config, m *mapping.Mapping, logger *slog.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	drv, err := LookupDriver(cfg.Driver)
	if err != nil {
		return nil, &rowsyncerr.ConfigurationError{Field: "source.driver", Reason: "unsupported driver", Err: err}
	}
	if cfg.Table == "" {
		return nil, &rowsyncerr.ConfigurationError{Field: "source.table", Reason: "must not be empty"}
	}
	dsn := cfg.DSN
	if dsn == "" {
		if cfg.Path == "" {
			return nil, &rowsyncerr.ConfigurationError{Field: "source.file_path", Reason: "file_path or dsn is required"}
		}
		dsn = drv.DSN(cfg.Path, cfg.Password)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	fields := m.SourceFields()
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = drv.Quote(f)
	}
	id := drv.Quote(m.IdentityField())
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s > ? ORDER BY %s ASC",
		strings.Join(quoted, ", "), drv.Quote(cfg.Table), id, id)

	return &Fetcher{
		driver:  drv,
		dsn:     dsn,
		table:   cfg.Table,
		timeout: timeout,
		mapping: m,
		query:   query,
		logger:  logger.With("component", "source", "driver", drv.Name, "table", cfg.Table),
	}, nil
}

// Query returns the SELECT issued by Fetch.
func (f *Fetcher) Query() string { return f.query }

func (f *Fetcher) unavailable(op string, err error) *rowsyncerr.SourceUnavailableError {
	return &rowsyncerr.SourceUnavailableError{Driver: f.driver.Name, Op: op, Err: err}
}

type opened struct {
	db  *sql.DB
	err error
}

// connect opens a new handle and waits at most the connect timeout for the
// first connection. The ODBC driver's Open ignores contexts, so the dial runs
// in its own goroutine; a handle that arrives after the deadline is closed.
func (f *Fetcher) connect(ctx context.Context) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	done := make(chan opened, 1)
	go func() {
		db, err := sql.Open(f.driver.SQLDriver, f.dsn)
		if err == nil {
			db.SetMaxOpenConns(1)
			if err = db.PingContext(ctx); err != nil {
				_ = db.Close()
				db = nil
			}
		}
		done <- opened{db: db, err: err}
	}()

	select {
	case o := <-done:
		return o.db, o.err
	case <-ctx.Done():
		go func() {
			if o := <-done; o.db != nil {
				_ = o.db.Close()
			}
		}()
		return nil, fmt.Errorf("connect within %s: %w", f.timeout, ctx.Err())
	}
}

// Ping checks that the source can be opened.
func (f *Fetcher) Ping(ctx context.Context) error {
	db, err := f.connect(ctx)
	if err != nil {
		return f.unavailable("connect", err)
	}
	return db.Close()
}

// Fetch returns every row whose identity is greater than lastID, ascending by
// identity. It never returns an error: an unreachable or failing source is
// logged and reported through Result.Unavailable.
func (f *Fetcher) Fetch(ctx context.Context, lastID int64) Result {
	db, err := f.connect(ctx)
	if err != nil {
		if strings.Contains(err.Error(), invalidPassword) {
			f.logger.ErrorContext(ctx, "source rejected the database password", "error", err)
		} else {
			f.logger.WarnContext(ctx, "source connect failed", "error", err)
		}
		return Result{Unavailable: f.unavailable("connect", err)}
	}
	defer func() { _ = db.Close() }()

	rows, err := f.fetchRows(ctx, db, lastID)
	if err != nil {
		f.logger.ErrorContext(ctx, "source query failed", "error", err, "last_id", lastID)
		return Result{Unavailable: f.unavailable("query", err)}
	}
	return Result{Rows: rows}
}

func (f *Fetcher) fetchRows(ctx context.Context, db *sql.DB, lastID int64) ([]record.Row, error) {
	rows, err := db.QueryContext(ctx, f.query, lastID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	fields := f.mapping.SourceFields()
	var out []record.Row
	for rows.Next() {
		values := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row, err := record.New(fields, values)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}
