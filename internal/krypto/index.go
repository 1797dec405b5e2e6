package krypto

import (
	"errors"

	"golang.org/x/crypto/blake2b"
)

// BlindIndex computes keyed BLAKE2b-256 digests of values. The digests
// can be stored and compared for equality without storing the values
// themselves. Without the key the digests can not be brute forced.
type BlindIndex struct {
	key Key
}

// NewBlindIndex creates a blind index using key.
func NewBlindIndex(key Key) (*BlindIndex, error) {
	if key.IsZero() {
		return nil, errors.New("blind index requires a key")
	}

	return &BlindIndex{
		key: key,
	}, nil
}

// Sum returns the digest of data.
func (b *BlindIndex) Sum(data []byte) []byte {
	h, err := blake2b.New256(b.key.value)
	if err != nil {
		// Only possible with keys longer than 64 bytes, and keys are 32.
		panic(err)
	}

	h.Write(data)
	return h.Sum(nil)
}
