// Package phonecrypt encrypts customer phone numbers at rest.
package phonecrypt

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// maxPlainPhone bounds stored plaintext accepted as a phone number.
const maxPlainPhone = 32

// ErrMalformed is returned when a stored value is not a ciphertext of this key.
var ErrMalformed = errors.New("malformed ciphertext")

// Cipher seals values as base64(nonce || ciphertext) with XChaCha20-Poly1305.
type Cipher struct {
	aead cipher.AEAD
}

// New creates a Cipher from a base64-encoded 32-byte key.
func New(keyB64 string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("decode phone key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("phone key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create aead: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext. Empty input stays empty.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (c *Cipher) Decrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", ErrMalformed
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", ErrMalformed
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrMalformed
	}
	return string(plain), nil
}

// Reveal returns the plaintext phone for a stored value. Rows written
// before encryption was enabled hold the number in clear and come back as is.
func (c *Cipher) Reveal(value string) string {
	plain, err := c.Decrypt(value)
	if err != nil {
		return value
	}
	return plain
}

// RevealPhone returns the phone number for a stored value and whether it can
// be texted. Plaintext rows are accepted only when they look like a number;
// a ciphertext sealed with another key is rejected instead of passed through.
func (c *Cipher) RevealPhone(value string) (string, bool) {
	plain, err := c.Decrypt(value)
	if err == nil {
		return plain, plain != ""
	}
	if !LooksLikePhone(value) {
		return "", false
	}
	return value, true
}

// LooksLikePhone reports whether value is at most 32 characters of digits,
// spaces and "+()-", with at least one digit.
func LooksLikePhone(value string) bool {
	if len(value) > maxPlainPhone {
		return false
	}

	digits := 0
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ', r == '+', r == '(', r == ')', r == '-':
		default:
			return false
		}
	}
	return digits > 0
}
