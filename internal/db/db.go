// Package db opens database connections and helps to build queries
// that work on both SQLite and Postgres.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Driver identifies a database/sql driver supported by the forum.
type Driver string

const (
	DriverSQLite   Driver = "sqlite3"
	DriverPostgres Driver = "pgx"
)

// UnmarshalText parses a driver name, it allows drivers to be read
// directly from configuration.
func (d *Driver) UnmarshalText(text []byte) error {
	switch v := Driver(text); v {
	case DriverSQLite, DriverPostgres:
		*d = v
		return nil
	default:
		return fmt.Errorf("unsupported database driver %q", text)
	}
}

// TxOptions returns the options transactions should be started with.
//
// SQLite transactions are serialized by the single write connection and
// immediate locking, so the default options suffice. Postgres needs
// serializable isolation for read-then-write transactions to be safe.
func (d Driver) TxOptions() *sql.TxOptions {
	if d == DriverPostgres {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

// To run SQLite so that it works well with our app, we need a few options:
//   - WAL Mode so that reads and writes don't block eachother.
//   - A busy timeout, specifying the duration a connection will wait for a lock.
//   - Foreign keys are enforced.
//   - Immediate transactions, so that a transaction takes the write lock when
//     it begins instead of failing halfway through when it upgrades.
const sqliteOptions = "_foreign_keys=on&_journal_mode=wal&_busy_timeout=5000&_txlock=immediate"

// Open opens a pool of connections for the driver.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// OpenSQLite opens a SQLite3 database for reading and writing.
//
// The pool is limited to a single connection, so that all transactions are
// serialized. This also means a transaction must never require a second
// connection while it is open.
//
// See this comment for more information:
// https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995
func OpenSQLite(dbFile string) (*sql.DB, error) {
	db, err := sql.Open(string(DriverSQLite), dbFile+"?"+sqliteOptions)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// don't close this connection, in memory databases would be lost.
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	return db, nil
}

// OpenPostgres opens a pool of Postgres connections using pgx and checks
// that the database is reachable.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(string(DriverPostgres), dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = db.PingContext(pingCtx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	return db, nil
}
