package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/forum/internal/auth"
	"github.com/willemschots/forum/internal/errorz"
	"github.com/willemschots/forum/internal/krypto"
)

// Tx is a transaction of a Store.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

func (t *Tx) Commit() error {
	return errorz.MapDBErr(t.tx.Commit())
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// CreateAccount creates an account with a new ID.
// It sets the ID of the account when successful.
func (t *Tx) CreateAccount(a *auth.Account) error {
	account := *a
	account.ID = uuid.New()

	err := insertAccount(t.store.newQuery(), t.tx.Exec, account)
	if err != nil {
		return err
	}

	a.ID = account.ID
	return nil
}

// FindAccount returns errorz.ErrNotFound if no account with the ID exists.
func (t *Tx) FindAccount(id uuid.UUID) (auth.Account, error) {
	return selectAccount(t.store.newQuery(), t.tx.QueryRow, id)
}

func (t *Tx) IdentityExists(kind auth.IdentityKind, value string) (bool, error) {
	return identityExists(t.store.newQuery(), t.tx.QueryRow, kind, value)
}

// CreateIdentity returns errorz.ErrConstraintViolated if the identity
// already exists.
func (t *Tx) CreateIdentity(i *auth.Identity) error {
	return insertIdentity(t.store.newQuery(), t.tx.Exec, *i)
}

// CreateToken creates a token with a new random ID.
// It sets the ID of the token when successful.
func (t *Tx) CreateToken(tok *auth.AuthToken) error {
	id, err := krypto.GenerateToken()
	if err != nil {
		return err
	}

	token := *tok
	token.ID = id

	err = insertToken(t.store.newQuery(), t.tx.Exec, token)
	if err != nil {
		return err
	}

	tok.ID = id
	return nil
}

// FindToken returns errorz.ErrNotFound if the token does not exist or is expired at now.
func (t *Tx) FindToken(id krypto.Token, now time.Time) (auth.AuthToken, error) {
	return selectToken(t.store.newQuery(), t.tx.QueryRow, id, now)
}

// DeleteToken reports whether the token was deleted.
func (t *Tx) DeleteToken(id krypto.Token) (bool, error) {
	n, err := deleteToken(t.store.newQuery(), t.tx.Exec, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteExpiredTokens returns the number of deleted tokens.
func (t *Tx) DeleteExpiredTokens(now time.Time) (int, error) {
	n, err := deleteExpiredTokens(t.store.newQuery(), t.tx.Exec, now)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
