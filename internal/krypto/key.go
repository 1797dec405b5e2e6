// Package krypto contains the cryptographic primitives of the forum:
// random bearer tokens, encryption keys, blind indexes and authenticated
// encryption of data at rest.
package krypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
)

const (
	keyLen = 32

	// SecretMarker is a string we can look for in logs to see if the app
	// is accidentally exposing secrets.
	SecretMarker = "<!SECRET_REDACTED!>"
)

var ErrInvalidKey = errors.New("invalid key")

// Key is a 32 byte key used for encryption and keyed hashing.
// Keys never print or marshal their value.
type Key struct {
	value []byte
}

// ParseKey expects a hex encoded key of 32 bytes (64 characters as hex).
func ParseKey(raw string) (Key, error) {
	var k Key
	err := k.UnmarshalText([]byte(raw))
	if err != nil {
		return Key{}, err
	}
	return k, nil
}

// UnmarshalText parses a hex encoded key, it allows keys to be read
// directly from configuration.
func (k *Key) UnmarshalText(text []byte) error {
	if len(text) != keyLen*2 {
		return fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidKey, keyLen*2, len(text))
	}

	v := make([]byte, keyLen)
	_, err := hex.Decode(v, text)
	if err != nil {
		return fmt.Errorf("%w: not hex encoded", ErrInvalidKey)
	}

	k.value = v
	return nil
}

func (k Key) Format(f fmt.State, verb rune) {
	f.Write([]byte(SecretMarker))
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(SecretMarker), nil
}

// LogValue implements the slog.LogValuer interface.
func (k Key) LogValue() slog.Value {
	return slog.StringValue(SecretMarker)
}

// IsZero reports whether the key was never set.
func (k Key) IsZero() bool {
	return len(k.value) == 0
}

// SecretValue returns the key as a byte slice. This is provided
// as an escape hatch for cases where the key needs to be provided
// to third party packages or libraries.
func (k Key) SecretValue() []byte {
	return k.value
}
