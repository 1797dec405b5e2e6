package migrate_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/willemschots/forum/internal/db"
	"github.com/willemschots/forum/internal/db/migrate"
	"github.com/willemschots/forum/internal/db/testdb"
)

func Test_Up(t *testing.T) {
	t.Run("ok, apply all migrations", func(t *testing.T) {
		conn := testdb.RunUnmigratedWhile(t)

		applied, err := migrate.Up(context.Background(), conn, db.DriverSQLite)
		if err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}

		if len(applied) != 2 {
			t.Fatalf("expected 2 migrations, got %d", len(applied))
		}

		for i, m := range applied {
			if m.Version != int64(i+1) {
				t.Errorf("got version %d, want %d", m.Version, i+1)
			}
		}

		version, err := migrate.Version(context.Background(), conn, db.DriverSQLite)
		if err != nil {
			t.Fatalf("failed to get version: %v", err)
		}

		if version != 2 {
			t.Errorf("got version %d, want 2", version)
		}

		for _, table := range []string{"accounts", "identities", "auth_tokens"} {
			var n int
			err := conn.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n)
			if err != nil {
				t.Errorf("table %s not created: %v", table, err)
			}
		}
	})

	t.Run("ok, nothing to apply", func(t *testing.T) {
		conn := testdb.RunWhile(t)

		applied, err := migrate.Up(context.Background(), conn, db.DriverSQLite)
		if err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}

		if len(applied) != 0 {
			t.Fatalf("expected no migrations, got %d", len(applied))
		}
	})

	t.Run("fail, unsupported driver", func(t *testing.T) {
		conn := testdb.RunUnmigratedWhile(t)

		_, err := migrate.Up(context.Background(), conn, db.Driver("mysql"))
		if err == nil {
			t.Fatalf("expected an error")
		}
	})

	t.Run("fail, invalid migration", func(t *testing.T) {
		conn := testdb.RunUnmigratedWhile(t)

		fsys := fstest.MapFS{
			"sqlite/00001_broken.sql": &fstest.MapFile{
				Data: []byte("-- +goose Up\nCREATE TABLE (;\n"),
			},
		}

		_, err := migrate.UpFS(context.Background(), conn, db.DriverSQLite, fsys)
		if err == nil {
			t.Fatalf("expected an error")
		}
	})
}
