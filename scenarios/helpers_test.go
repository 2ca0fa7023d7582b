//go:build integration

package scenarios

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/florinutz/rowsync"
	"github.com/florinutz/rowsync/destination"
	"github.com/florinutz/rowsync/dialect"
	"github.com/florinutz/rowsync/health"
	"github.com/florinutz/rowsync/internal/logging"
	"github.com/florinutz/rowsync/mapping"
	"github.com/florinutz/rowsync/schema"
	"github.com/florinutz/rowsync/source"
	"github.com/florinutz/rowsync/testutil"
)

const (
	destTable    = "access_logs"
	pollInterval = 200 * time.Millisecond
)

// ─── CLI binary ─────────────────────────────────────────────────────────────

var (
	buildOnce sync.Once
	binPath   string
	buildErr  error
)

// rowsyncBinary builds the CLI once per test run.
func rowsyncBinary(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "rowsync-test-*")
		if err != nil {
			buildErr = err
			return
		}
		binPath = filepath.Join(dir, "rowsync")
		cmd := exec.Command("go", "build", "-o", binPath, "github.com/florinutz/rowsync/cmd/rowsync")
		cmd.Stderr = os.Stderr
		buildErr = cmd.Run()
	})
	if buildErr != nil {
		t.Fatalf("build rowsync: %v", buildErr)
	}
	return binPath
}

func runRowsync(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, err := exec.Command(rowsyncBinary(t), args...).CombinedOutput()
	return string(out), err
}

// ─── In-process daemon ──────────────────────────────────────────────────────

type daemonHandle struct {
	daemon    *rowsync.Daemon
	logs      *testutil.LogCapture
	checker   *health.Checker
	readiness *health.ReadinessChecker
}

// startDaemon runs a daemon copying src into destTable at dsn until the test
// ends.
func startDaemon(t *testing.T, src *testutil.SwipeSource, driver, dsn string) *daemonHandle {
	t.Helper()

	logs := testutil.NewLogCapture()
	logger, err := logging.New(logs, "debug", "text")
	if err != nil {
		t.Fatal(err)
	}

	d, err := dialect.ByName(driver)
	if err != nil {
		t.Fatal(err)
	}
	m, err := mapping.New(testutil.SwipeFields, testutil.SwipeMapping, "f_RecID", "raw_id")
	if err != nil {
		t.Fatal(err)
	}
	fetcher, err := source.NewFetcher(source.Config{Driver: "sqlite", Path: src.Path, Table: "t_d_SwipeRecord"}, m, logger)
	if err != nil {
		t.Fatal(err)
	}

	h := &daemonHandle{
		logs:      logs,
		checker:   health.NewChecker(),
		readiness: health.NewReadinessChecker(),
	}
	open := func(ctx context.Context) (*sql.DB, error) {
		return destination.Open(ctx, d, dsn, 5*time.Second)
	}
	h.daemon = rowsync.New(open,
		schema.NewReconciler(d, m, destTable, nil, logger),
		fetcher,
		destination.NewTable(d, m, destTable, destination.WithLogger(logger)),
		rowsync.WithLogger(logger),
		rowsync.WithPollInterval(pollInterval),
		rowsync.WithRecoveryBackoff(pollInterval),
		rowsync.WithHealthChecker(h.checker),
		rowsync.WithReadiness(h.readiness),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.daemon.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("daemon.Run: %v", err)
		}
	})

	logs.WaitFor(t, "polling started", 1, 30*time.Second)
	return h
}

// ─── Destination checks ─────────────────────────────────────────────────────

// sqliteDSN lets the test read a SQLite destination while the daemon writes.
func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func openDest(t *testing.T, driver, dsn string) *sql.DB {
	t.Helper()
	d, err := dialect.ByName(driver)
	if err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		t.Fatalf("open destination: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func destIDs(t *testing.T, db *sql.DB) []int64 {
	t.Helper()
	rows, err := db.Query("SELECT raw_id FROM " + destTable)
	if err != nil {
		return nil
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan raw_id: %v", err)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// waitForIDs polls the destination until it holds exactly want.
func waitForIDs(t *testing.T, db *sql.DB, timeout time.Duration, want ...int64) {
	t.Helper()
	wantStr := fmt.Sprint(want)
	deadline := time.Now().Add(timeout)
	for {
		got := destIDs(t, db)
		if fmt.Sprint(got) == wantStr {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("destination ids = %v, want %v", got, want)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func columnNames(t *testing.T, db *sql.DB, query string, args ...any) []string {
	t.Helper()
	rows, err := db.Query(query, args...)
	if err != nil {
		t.Fatalf("list columns: %v", err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			t.Fatal(err)
		}
		cols = append(cols, strings.ToLower(c))
	}
	sort.Strings(cols)
	return cols
}
