package krypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrUnknownKey indicates that the key used to encrypt the data is unknown.
	ErrUnknownKey = errors.New("unknown key")
	// ErrInvalidData indicates that the data is invalid.
	ErrInvalidData = errors.New("invalid data")
)

const indexBytes = 4

// Encryptor encrypts and decrypts data using AES-GCM.
//
// The encryptor uses an append only list of keys. New data is always
// encrypted with the last key, older data remains readable as long as
// its key is still in the list.
//
// Output is the big endian index of the key, followed by the nonce and
// the sealed data. The index is authenticated as additional data but is
// not considered secret.
type Encryptor struct {
	aeads []cipher.AEAD
}

// NewEncryptor creates a new encryptor with the provided keys.
func NewEncryptor(keys []Key) (*Encryptor, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one key is required")
	}

	aeads := make([]cipher.AEAD, 0, len(keys))
	for i, k := range keys {
		block, err := aes.NewCipher(k.value)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}

		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}

		aeads = append(aeads, gcm)
	}

	return &Encryptor{
		aeads: aeads,
	}, nil
}

// Encrypt encrypts the data using the latest available key.
func (e *Encryptor) Encrypt(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	index := len(e.aeads) - 1
	aead := e.aeads[index]

	nonce, err := randBytes(aead.NonceSize())
	if err != nil {
		return nil, err
	}

	prefix := make([]byte, indexBytes)
	binary.BigEndian.PutUint32(prefix, uint32(index))

	out := make([]byte, 0, indexBytes+len(nonce)+len(data)+aead.Overhead())
	out = append(out, prefix...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, data, prefix), nil
}

// Decrypt decrypts the message using the key identified by its first 4 bytes.
func (e *Encryptor) Decrypt(message []byte) ([]byte, error) {
	if len(message) < indexBytes {
		return nil, ErrInvalidData
	}

	index := binary.BigEndian.Uint32(message[:indexBytes])
	if int(index) >= len(e.aeads) {
		return nil, ErrUnknownKey
	}

	aead := e.aeads[index]
	minLen := indexBytes + aead.NonceSize()
	if len(message) <= minLen {
		return nil, ErrInvalidData
	}

	nonce := message[indexBytes:minLen]
	return aead.Open(nil, nonce, message[minLen:], message[:indexBytes])
}
