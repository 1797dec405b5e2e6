package auth

import "github.com/willemschots/forum/internal/errorz"

var (
	ErrInvalidUsername = errorz.NewCoded(errorz.ErrInvalidInput, "InvalidUsername", "Invalid username")
	ErrInvalidEmail    = errorz.NewCoded(errorz.ErrInvalidInput, "InvalidEmail", "Invalid email address")

	ErrEmailAlreadyExists    = errorz.NewCoded(errorz.ErrConflict, "EmailAlreadyExists", "Account already exists for this email")
	ErrUsernameAlreadyExists = errorz.NewCoded(errorz.ErrConflict, "UsernameAlreadyExists", "Account already exists for this username")

	// ErrInvalidToken covers malformed, unknown, expired and already redeemed tokens.
	ErrInvalidToken     = errorz.NewCoded(errorz.ErrNotFound, "InvalidToken", "Token not found")
	ErrAccountNotFound  = errorz.NewCoded(errorz.ErrNotFound, "AccountNotFound", "Account not found")
	ErrInvalidAuthScope = errorz.NewCoded(errorz.ErrConflict, "InvalidAuthScope", "Token is not authorized for login")
)
