// Package db stores accounts, identities and tokens in a SQL database.
package db

import (
	"context"
	"database/sql"

	"github.com/willemschots/forum/internal/auth"
	"github.com/willemschots/forum/internal/db"
	"github.com/willemschots/forum/internal/errorz"
	"github.com/willemschots/forum/internal/krypto"
)

// Store is responsible for interacting with a database.
//
// Emails and token payloads are encrypted at rest. Identity values and
// token IDs are only stored as blind indexes.
type Store struct {
	db         *sql.DB
	driver     db.Driver
	encryptor  *krypto.Encryptor
	blindIndex *krypto.BlindIndex
}

// New creates a new Store.
func New(conn *sql.DB, driver db.Driver, encryptor *krypto.Encryptor, blindIndex *krypto.BlindIndex) *Store {
	return &Store{
		db:         conn,
		driver:     driver,
		encryptor:  encryptor,
		blindIndex: blindIndex,
	}
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (auth.Tx, error) {
	tx, err := s.db.BeginTx(ctx, s.driver.TxOptions())
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}
	return &Tx{
		tx:    tx,
		store: s,
	}, nil
}

// IdentityExists checks if an identity exists outside of a transaction.
func (s *Store) IdentityExists(ctx context.Context, kind auth.IdentityKind, value string) (bool, error) {
	return identityExists(s.newQuery(), func(query string, params ...any) *sql.Row {
		return s.db.QueryRowContext(ctx, query, params...)
	}, kind, value)
}

func (s *Store) newQuery() *db.Query {
	return &db.Query{
		Driver:     s.driver,
		Encryptor:  s.encryptor,
		BlindIndex: s.blindIndex,
	}
}
