// Package email validates email addresses and sends templated emails.
package email

import (
	"errors"
	"net/mail"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidEmail indicates an email address is not valid.
var ErrInvalidEmail = errors.New("invalid email address")

// Address is a bare email address, without display name or comments.
// It's what emails are delivered to.
type Address string

// ParseAddress trims raw and accepts it only if it is a bare address
// such as "alice@example.com". Whether the mailbox exists is not checked.
func ParseAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)

	parsed, err := mail.ParseAddress(trimmed)
	if err != nil || parsed.Address != trimmed {
		// The second case rejects "Alice <alice@example.com>" and comments.
		return "", ErrInvalidEmail
	}

	return Address(parsed.Address), nil
}

// UnmarshalText allows addresses to be read from configuration.
func (a *Address) UnmarshalText(text []byte) error {
	addr, err := ParseAddress(string(text))
	if err != nil {
		return err
	}

	*a = addr
	return nil
}

// Email is an address in the form the user supplied it, together with
// the normalized form that identifies an account.
type Email struct {
	Raw        Address `json:"raw"`
	Normalized string  `json:"normalized"`
}

// NewEmail parses raw and normalizes it.
func NewEmail(raw string) (Email, error) {
	addr, err := ParseAddress(raw)
	if err != nil {
		return Email{}, err
	}

	return Email{
		Raw:        addr,
		Normalized: Normalize(addr),
	}, nil
}

// Normalize returns the canonical form of addr: Unicode NFC followed by
// full case folding. "Alice@Example.COM" and "alice@example.com" normalize
// to the same value.
func Normalize(addr Address) string {
	// Casers keep state, so one is created per call.
	return cases.Fold().String(norm.NFC.String(string(addr)))
}

func (e Email) String() string {
	return string(e.Raw)
}
