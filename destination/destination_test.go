package destination

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/florinutz/rowsync/dialect"
	"github.com/florinutz/rowsync/mapping"
	"github.com/florinutz/rowsync/record"
	"github.com/florinutz/rowsync/rowsyncerr"
	"github.com/florinutz/rowsync/schema"
)

var swipeFields = []string{"f_RecID", "f_CardNO", "f_ReadDate", "f_InOut", "f_ConsumerID"}

func swipeMapping(t *testing.T) *mapping.Mapping {
	t.Helper()
	m, err := mapping.New(swipeFields, map[string]string{
		"f_RecID":      "raw_id",
		"f_CardNO":     "card_no",
		"f_ReadDate":   "read_date",
		"f_InOut":      "in_out",
		"f_ConsumerID": "consumer_id",
	}, "f_RecID", "raw_id")
	if err != nil {
		t.Fatal(err)
	}
	return m
}

type captureDLQ struct {
	ids  []any
	errs []error
}

func (c *captureDLQ) Record(_ context.Context, _ string, id any, _ record.Row, err error) error {
	c.ids = append(c.ids, id)
	c.errs = append(c.errs, err)
	return nil
}

func (c *captureDLQ) Close() error { return nil }

// setup opens a SQLite destination with the access_logs table in place.
func setup(t *testing.T) (*sql.DB, *Table, *captureDLQ) {
	t.Helper()
	ctx := context.Background()
	m := swipeMapping(t)

	db, err := Open(ctx, dialect.SQLite{}, filepath.Join(t.TempDir(), "dest.db"), time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := schema.NewReconciler(dialect.SQLite{}, m, "access_logs", nil, nil).Ensure(ctx, db); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	capture := &captureDLQ{}
	return db, NewTable(dialect.SQLite{}, m, "access_logs", WithDeadLetter(capture)), capture
}

func swipe(t *testing.T, id any, card string) record.Row {
	t.Helper()
	row, err := record.New(swipeFields, []any{
		id, card, time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), int64(1), int64(7),
	})
	if err != nil {
		t.Fatal(err)
	}
	return row
}

func swipes(t *testing.T, ids ...int64) []record.Row {
	t.Helper()
	rows := make([]record.Row, len(ids))
	for i, id := range ids {
		rows[i] = swipe(t, id, "card")
	}
	return rows
}

func count(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM access_logs`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestLastID_EmptyTable(t *testing.T) {
	db, table, _ := setup(t)

	id, err := table.LastID(context.Background(), db)
	if err != nil {
		t.Fatal(err)
	}
	if id != 0 {
		t.Errorf("LastID = %d, want 0", id)
	}
}

func TestApply_InsertsAndAdvancesCursor(t *testing.T) {
	ctx := context.Background()
	db, table, _ := setup(t)

	res, err := table.Apply(ctx, db, swipes(t, 1, 2, 3))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res != (ApplyResult{Inserted: 3}) {
		t.Errorf("result = %+v", res)
	}

	id, err := table.LastID(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if id != 3 {
		t.Errorf("LastID = %d, want 3", id)
	}

	var card string
	if err := db.QueryRow(`SELECT card_no FROM access_logs WHERE raw_id = 2`).Scan(&card); err != nil {
		t.Fatal(err)
	}
	if card != "card" {
		t.Errorf("card_no = %q", card)
	}
}

func TestApply_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, table, _ := setup(t)

	if _, err := table.Apply(ctx, db, swipes(t, 1, 2, 3)); err != nil {
		t.Fatal(err)
	}
	res, err := table.Apply(ctx, db, swipes(t, 1, 2, 3))
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if res.Inserted != 0 || res.Duplicates != 3 || res.Failed != 0 {
		t.Errorf("second Apply = %+v, want 3 duplicates", res)
	}
	if n := count(t, db); n != 3 {
		t.Errorf("row count = %d, want 3", n)
	}
}

func TestApply_DuplicateKeepsFirstWrite(t *testing.T) {
	ctx := context.Background()
	db, table, _ := setup(t)

	if _, err := table.Apply(ctx, db, []record.Row{swipe(t, int64(1), "first")}); err != nil {
		t.Fatal(err)
	}
	if _, err := table.Apply(ctx, db, []record.Row{swipe(t, int64(1), "second")}); err != nil {
		t.Fatal(err)
	}
	var card string
	if err := db.QueryRow(`SELECT card_no FROM access_logs WHERE raw_id = 1`).Scan(&card); err != nil {
		t.Fatal(err)
	}
	if card != "first" {
		t.Errorf("card_no = %q, want the first write to win", card)
	}
}

func TestApply_CursorIsMonotonic(t *testing.T) {
	ctx := context.Background()
	db, table, _ := setup(t)

	var last int64
	for _, batch := range [][]int64{{1, 2}, {3, 4, 5}, {2, 3}, {6}} {
		if _, err := table.Apply(ctx, db, swipes(t, batch...)); err != nil {
			t.Fatal(err)
		}
		id, err := table.LastID(ctx, db)
		if err != nil {
			t.Fatal(err)
		}
		if id < last {
			t.Fatalf("cursor went backwards: %d -> %d", last, id)
		}
		last = id
	}
	if last != 6 {
		t.Errorf("final cursor = %d, want 6", last)
	}
}

func TestApply_RowFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	db, table, capture := setup(t)

	rows := []record.Row{
		swipe(t, int64(1), "a"),
		swipe(t, "not-a-number", "b"),
		swipe(t, int64(3), "c"),
	}
	res, err := table.Apply(ctx, db, rows)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Inserted != 2 || res.Failed != 1 {
		t.Errorf("result = %+v, want 2 inserted and 1 failed", res)
	}
	if n := count(t, db); n != 2 {
		t.Errorf("row count = %d, want 2", n)
	}

	if len(capture.ids) != 1 || capture.ids[0] != "not-a-number" {
		t.Fatalf("dead letters = %v", capture.ids)
	}
	var rowErr *rowsyncerr.RowApplyError
	if !errors.As(capture.errs[0], &rowErr) || rowErr.Table != "access_logs" {
		t.Errorf("dead letter error = %v", capture.errs[0])
	}
}

func TestApply_EmptyIsNoop(t *testing.T) {
	db, table, _ := setup(t)
	_ = db.Close()

	res, err := table.Apply(context.Background(), db, nil)
	if err != nil || res != (ApplyResult{}) {
		t.Errorf("Apply(nil) = %+v, %v", res, err)
	}
}

func TestClosedConnection(t *testing.T) {
	ctx := context.Background()
	db, table, _ := setup(t)
	_ = db.Close()

	var destErr *rowsyncerr.DestinationUnavailableError
	if _, err := table.LastID(ctx, db); !errors.As(err, &destErr) {
		t.Errorf("LastID on closed db: %v", err)
	}
	if _, err := table.Apply(ctx, db, swipes(t, 1)); !errors.As(err, &destErr) {
		t.Errorf("Apply on closed db: %v", err)
	} else if destErr.Op != "begin" {
		t.Errorf("Op = %q, want begin", destErr.Op)
	}
}

func TestOpen_Unreachable(t *testing.T) {
	_, err := Open(context.Background(), dialect.SQLite{}, filepath.Join(t.TempDir(), "missing", "dest.db"), time.Second)
	var destErr *rowsyncerr.DestinationUnavailableError
	if !errors.As(err, &destErr) || destErr.Op != "connect" {
		t.Fatalf("expected connect failure, got %v", err)
	}
}

func TestApply_AfterIdentityColumnAdded(t *testing.T) {
	ctx := context.Background()
	m := swipeMapping(t)
	db, err := Open(ctx, dialect.SQLite{}, filepath.Join(t.TempDir(), "dest.db"), time.Second)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// A reporting table someone created by hand, already holding data.
	if _, err := db.ExecContext(ctx, `CREATE TABLE access_logs (card_no VARCHAR(255))`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO access_logs (card_no) VALUES ('legacy-1'), ('legacy-2')`); err != nil {
		t.Fatal(err)
	}
	if _, err := schema.NewReconciler(dialect.SQLite{}, m, "access_logs", nil, nil).Ensure(ctx, db); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	capture := &captureDLQ{}
	table := NewTable(dialect.SQLite{}, m, "access_logs", WithDeadLetter(capture))
	res, err := table.Apply(ctx, db, swipes(t, 1, 2, 3))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Inserted != 3 || res.Failed != 0 {
		t.Fatalf("result = %+v, dead letters = %v", res, capture.errs)
	}

	res, err = table.Apply(ctx, db, swipes(t, 3))
	if err != nil {
		t.Fatal(err)
	}
	if res.Duplicates != 1 || res.Inserted != 0 {
		t.Errorf("replay result = %+v, want one duplicate", res)
	}

	if id, err := table.LastID(ctx, db); err != nil || id != 3 {
		t.Errorf("LastID = %d, %v, want 3", id, err)
	}
	if n := count(t, db); n != 5 {
		t.Errorf("row count = %d, want 2 legacy + 3 synced", n)
	}
}
