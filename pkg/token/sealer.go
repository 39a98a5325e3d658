// Package token seals user credentials at rest.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrInvalidToken is returned when a sealed token is malformed or was sealed
// with a different password.
var ErrInvalidToken = errors.New("invalid sealed token")

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 2
)

// Sealer encrypts and decrypts credential tokens.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Unseal(sealed string) (string, error)
}

// Compile-time interface check.
var _ Sealer = (*secretboxSealer)(nil)

type secretboxSealer struct {
	password []byte
}

// NewSealer returns a Sealer keyed by password. Each sealed token carries a
// random salt; the key is derived with argon2id and the payload sealed with
// NaCl secretbox.
func NewSealer(password string) Sealer {
	return &secretboxSealer{password: []byte(password)}
}

// Seal returns base64url(salt | nonce | box).
func (s *secretboxSealer) Seal(plaintext string) (string, error) {
	var (
		salt  [saltSize]byte
		nonce [nonceSize]byte
	)

	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	key := s.deriveKey(salt[:])

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, []byte(plaintext), &nonce, key)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Unseal reverses Seal.
func (s *secretboxSealer) Unseal(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if len(raw) < saltSize+nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: too short", ErrInvalidToken)
	}

	var nonce [nonceSize]byte

	salt := raw[:saltSize]
	copy(nonce[:], raw[saltSize:saltSize+nonceSize])
	box := raw[saltSize+nonceSize:]

	plain, ok := secretbox.Open(nil, box, &nonce, s.deriveKey(salt))
	if !ok {
		return "", fmt.Errorf("%w: authentication failed", ErrInvalidToken)
	}

	return string(plain), nil
}

func (s *secretboxSealer) deriveKey(salt []byte) *[keySize]byte {
	var key [keySize]byte

	copy(key[:], argon2.IDKey(s.password, salt, argonTime, argonMemory, argonThreads, keySize))

	return &key
}
