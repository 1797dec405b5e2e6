package auth

import (
	"time"

	"github.com/google/uuid"
)

// IdentityKind is the kind of value an identity claims.
type IdentityKind string

const (
	IdentityNormalizedEmail IdentityKind = "normalizedEmail"
	IdentityUsername        IdentityKind = "username"
)

// Identity claims a value of some kind for an account. For every kind,
// a value can only be claimed once across all accounts.
type Identity struct {
	Kind      IdentityKind
	Value     string
	AccountID uuid.UUID
	CreatedAt time.Time
}

// identitiesOf returns the identities every account must have.
func identitiesOf(a Account) []Identity {
	return []Identity{
		{
			Kind:      IdentityNormalizedEmail,
			Value:     a.Email.Normalized,
			AccountID: a.ID,
			CreatedAt: a.CreatedAt,
		},
		{
			Kind:      IdentityUsername,
			Value:     string(a.Username),
			AccountID: a.ID,
			CreatedAt: a.CreatedAt,
		},
	}
}
