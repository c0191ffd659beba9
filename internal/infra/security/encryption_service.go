// File: internal/infra/security/encryption_service.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const sealedPrefix = "v1."

var ErrSealedFormat = errors.New("sealed value has an unknown format")

// EncryptionService seals chat content before it is written to storage.
// Every value is AES-GCM encrypted with a fresh nonce and bound to a scope
// (the workspace ID), so a sealed value copied into another workspace fails
// to open.
type EncryptionService struct {
	gcm cipher.AEAD
}

// NewEncryptionService takes a raw 16, 24 or 32 byte key.
func NewEncryptionService(key string) (*EncryptionService, error) {
	switch n := len(key); n {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", n)
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{gcm: gcm}, nil
}

// Seal returns "v1." + base64url(nonce || ciphertext).
func (e *EncryptionService) Seal(plaintext, scope string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	out := e.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(scope))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. scope must match the one used when sealing.
func (e *EncryptionService) Open(sealed, scope string) (string, error) {
	body, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", ErrSealedFormat
	}
	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealedFormat, err)
	}
	ns := e.gcm.NonceSize()
	if len(data) < ns+e.gcm.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrSealedFormat)
	}
	pt, err := e.gcm.Open(nil, data[:ns], data[ns:], []byte(scope))
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}
