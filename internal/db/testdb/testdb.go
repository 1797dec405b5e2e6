// Package testdb provides databases for tests.
package testdb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/willemschots/forum/internal/db"
	"github.com/willemschots/forum/internal/db/migrate"
)

// RunWhile runs an in-memory SQLite database while the provided test is
// executing. It returns an empty database with all migrations applied.
func RunWhile(t *testing.T) *sql.DB {
	t.Helper()

	conn := RunUnmigratedWhile(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := migrate.Up(ctx, conn, db.DriverSQLite)
	if err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return conn
}

// RunUnmigratedWhile runs an in-memory SQLite database while the provided
// test is executing. It returns an empty database without any migrations applied.
func RunUnmigratedWhile(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		err := conn.Close()
		if err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})

	return conn
}
