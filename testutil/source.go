package testutil

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// SwipeFields are the columns of the table created by NewSwipeSource.
var SwipeFields = []string{"f_RecID", "f_CardNO", "f_ReadDate", "f_InOut", "f_ConsumerID"}

// SwipeMapping maps SwipeFields to destination columns.
var SwipeMapping = map[string]string{
	"f_RecID":      "raw_id",
	"f_CardNO":     "card_no",
	"f_ReadDate":   "read_date",
	"f_InOut":      "in_out",
	"f_ConsumerID": "consumer_id",
}

// SwipeSource is a SQLite stand-in for the Access swipe-record table.
type SwipeSource struct {
	Path string
	t    *testing.T
}

// NewSwipeSource creates a SQLite database with an empty t_d_SwipeRecord
// table in a temp dir.
func NewSwipeSource(t *testing.T) *SwipeSource {
	t.Helper()
	s := &SwipeSource{Path: filepath.Join(t.TempDir(), "swipe.db"), t: t}
	s.exec(`CREATE TABLE t_d_SwipeRecord (
		f_RecID INTEGER PRIMARY KEY,
		f_CardNO TEXT,
		f_ReadDate TEXT,
		f_InOut INTEGER,
		f_ConsumerID INTEGER
	)`)
	return s
}

// Insert adds one swipe per id. Card numbers and timestamps derive from the
// id so tests can check values end to end.
func (s *SwipeSource) Insert(ids ...int64) {
	s.t.Helper()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	for _, id := range ids {
		s.exec(`INSERT INTO t_d_SwipeRecord (f_RecID, f_CardNO, f_ReadDate, f_InOut, f_ConsumerID) VALUES (?, ?, ?, ?, ?)`,
			id,
			fmt.Sprintf("CARD%04d", id),
			base.Add(time.Duration(id)*time.Minute).Format("2006-01-02 15:04:05"),
			id%2,
			1000+id,
		)
	}
}

func (s *SwipeSource) exec(query string, args ...any) {
	s.t.Helper()
	db, err := sql.Open("sqlite", "file:"+s.Path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		s.t.Fatalf("open source: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(query, args...); err != nil {
		s.t.Fatalf("source exec %q: %v", query, err)
	}
}
