package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/willemschots/forum/internal/email"
	"github.com/willemschots/forum/internal/krypto"
)

// AuthToken is a single use bearer token that authorizes whatever its
// payload describes.
type AuthToken struct {
	ID        krypto.Token
	CreatedAt time.Time
	// Expiration is nil for tokens that don't expire.
	Expiration *time.Time
	// Payload is nil if the token was stored with an unknown scope.
	Payload Payload
}

// ExpiredAt reports whether the token is expired at now.
func (t AuthToken) ExpiredAt(now time.Time) bool {
	return t.Expiration != nil && !now.Before(*t.Expiration)
}

// Scope identifies the kind of payload a token carries.
type Scope string

const (
	ScopePendingSignup Scope = "pendingSignup"
	ScopeSession       Scope = "session"
)

// Payload is what a token authorizes. It's either a PendingSignup or a Session.
type Payload interface {
	Scope() Scope
}

// PendingSignup authorizes the creation of an account. The owner of the
// email address has not proven ownership until the token is redeemed.
type PendingSignup struct {
	Email    email.Email `json:"email"`
	Username Username    `json:"username"`
}

func (PendingSignup) Scope() Scope {
	return ScopePendingSignup
}

// Session authenticates its bearer as the account.
type Session struct {
	AccountID uuid.UUID `json:"accountId"`
}

func (Session) Scope() Scope {
	return ScopeSession
}

// MarshalPayload encodes p for storage.
func MarshalPayload(p Payload) (Scope, []byte, error) {
	switch p.(type) {
	case PendingSignup, Session:
	default:
		return "", nil, fmt.Errorf("unsupported payload type %T", p)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return "", nil, err
	}

	return p.Scope(), data, nil
}

// UnmarshalPayload decodes a stored payload. Unknown scopes result in a
// nil payload without an error.
func UnmarshalPayload(scope Scope, data []byte) (Payload, error) {
	switch scope {
	case ScopePendingSignup:
		var p PendingSignup
		err := json.Unmarshal(data, &p)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", scope, err)
		}
		return p, nil
	case ScopeSession:
		var p Session
		err := json.Unmarshal(data, &p)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", scope, err)
		}
		return p, nil
	default:
		return nil, nil
	}
}
