package auth

import (
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/willemschots/forum/internal/email"
)

// Account is a forum account. Accounts are created when a pending signup
// is redeemed and are not changed afterwards.
type Account struct {
	ID        uuid.UUID
	Email     email.Email
	Username  Username
	CreatedAt time.Time
}

// Username is the public name of an account. Usernames are case
// preserving and compared as stored.
type Username string

const minUsernameLen = 3

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ParseUsername validates raw as a username.
func ParseUsername(raw string) (Username, error) {
	if utf8.RuneCountInString(raw) < minUsernameLen {
		return "", ErrInvalidUsername.WithMessage("Usernames must contain at least 3 characters")
	}

	if !usernameRe.MatchString(raw) {
		return "", ErrInvalidUsername.WithMessage("May only contain alphanumeric characters and underscores.")
	}

	return Username(raw), nil
}
