package testutil

import (
	"context"
	"database/sql"
	"strconv"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
)

// MySQLContainer holds a running MySQL container and its connection settings.
type MySQLContainer struct {
	Container *tcmysql.MySQLContainer
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
	DSN       string
}

// StartMySQL starts a MySQL 8 container to act as a destination.
// The container is automatically terminated when the test ends.
func StartMySQL(t *testing.T) *MySQLContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithUsername("root"),
		tcmysql.WithPassword("test"),
		tcmysql.WithDatabase("attendance"),
	)
	if err != nil {
		t.Fatalf("start mysql container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("get mysql host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("get mysql port: %v", err)
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		t.Fatalf("parse mysql port: %v", err)
	}
	dsn, err := container.ConnectionString(ctx, "parseTime=true")
	if err != nil {
		t.Fatalf("mysql connection string: %v", err)
	}

	c := &MySQLContainer{
		Container: container,
		Host:      host,
		Port:      port,
		User:      "root",
		Password:  "test",
		Database:  "attendance",
		DSN:       dsn,
	}

	// Wait for MySQL to be ready with a connection test.
	for i := 0; i < 30; i++ {
		db, err := sql.Open("mysql", dsn)
		if err == nil {
			err = db.Ping()
			_ = db.Close()
			if err == nil {
				return c
			}
		}
		time.Sleep(time.Second)
	}
	t.Fatalf("mysql not ready after 30s")
	return nil
}

// KillConnections kills every other client connection, simulating a dropped
// destination connection.
func (c *MySQLContainer) KillConnections(t *testing.T) int {
	t.Helper()
	db, err := sql.Open("mysql", c.DSN)
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.Query(`SELECT id FROM information_schema.processlist
		WHERE db = ? AND id <> CONNECTION_ID() AND command <> 'Daemon'`, c.Database)
	if err != nil {
		t.Fatalf("list connections: %v", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan connection id: %v", err)
		}
		ids = append(ids, id)
	}
	_ = rows.Close()

	for _, id := range ids {
		if _, err := db.Exec("KILL CONNECTION " + strconv.FormatInt(id, 10)); err != nil {
			t.Logf("kill %d: %v", id, err)
		}
	}
	return len(ids)
}
