// Package migrate applies the embedded SQL migrations using goose.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/willemschots/forum/internal/db"
	"github.com/willemschots/forum/migrations"
)

// Migration is a migration that was applied.
type Migration struct {
	Version  int64
	Filename string
}

// Up applies all pending migrations for the driver and returns the ones
// that ran. If the database is up to date, it returns an empty slice.
func Up(ctx context.Context, conn *sql.DB, driver db.Driver) ([]Migration, error) {
	return UpFS(ctx, conn, driver, migrations.FS)
}

// UpFS is like Up, but reads migrations from fsys. fsys is expected to
// contain a directory per driver, "sqlite" and "postgres".
func UpFS(ctx context.Context, conn *sql.DB, driver db.Driver, fsys fs.FS) ([]Migration, error) {
	p, err := newProvider(conn, driver, fsys)
	if err != nil {
		return nil, err
	}

	results, err := p.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	out := make([]Migration, 0, len(results))
	for _, r := range results {
		out = append(out, Migration{
			Version:  r.Source.Version,
			Filename: r.Source.Path,
		})
	}

	return out, nil
}

// Version returns the version of the latest applied migration.
func Version(ctx context.Context, conn *sql.DB, driver db.Driver) (int64, error) {
	p, err := newProvider(conn, driver, migrations.FS)
	if err != nil {
		return 0, err
	}

	return p.GetDBVersion(ctx)
}

func newProvider(conn *sql.DB, driver db.Driver, fsys fs.FS) (*goose.Provider, error) {
	var (
		dialect goose.Dialect
		dir     string
	)

	switch driver {
	case db.DriverSQLite:
		dialect, dir = goose.DialectSQLite3, "sqlite"
	case db.DriverPostgres:
		dialect, dir = goose.DialectPostgres, "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, err
	}

	p, err := goose.NewProvider(dialect, conn, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	return p, nil
}
