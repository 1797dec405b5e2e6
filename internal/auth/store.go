package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/forum/internal/krypto"
)

// Store provides access to accounts, identities and tokens.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)

	// IdentityExists checks for an identity outside of a transaction.
	// The answer can be outdated by the time it is used.
	IdentityExists(ctx context.Context, kind IdentityKind, value string) (bool, error)
}

// Tx is a transaction. If an error occurs on any of the methods, the
// transaction is considered to have failed and should be rolled back.
// Tx is not safe for concurrent use.
type Tx interface {
	Commit() error
	Rollback() error

	// CreateAccount allocates a new ID for the account and stores it.
	CreateAccount(a *Account) error
	// FindAccount returns errorz.ErrNotFound if no account exists.
	FindAccount(id uuid.UUID) (Account, error)

	IdentityExists(kind IdentityKind, value string) (bool, error)
	// CreateIdentity returns errorz.ErrConstraintViolated if the identity
	// was already claimed.
	CreateIdentity(i *Identity) error

	// CreateToken generates a new random ID for the token and stores it.
	CreateToken(t *AuthToken) error
	// FindToken returns errorz.ErrNotFound if the token does not exist or
	// is expired at now.
	FindToken(id krypto.Token, now time.Time) (AuthToken, error)
	// DeleteToken reports whether a token was deleted. Deleting a token
	// that does not exist is not an error.
	DeleteToken(id krypto.Token) (bool, error)
	// DeleteExpiredTokens deletes all tokens expired at now.
	DeleteExpiredTokens(now time.Time) (int, error)
}
