// Package secret encrypts individual connector config field values so
// tokens/credentials are never stored in plaintext, via a thin
// EncryptField/DecryptField interface rather than inlining crypto into
// every connector adapter. Built on crypto/aes + crypto/cipher — see
// DESIGN.md for why no third-party secrets-management SDK is used here.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// FieldEncryptedMarker is the sentinel key suffix on a connector's config
// map signaling a field's value is ciphertext.
const FieldEncryptedMarker = "_token_encrypted"

// ErrKeySize is returned when a key isn't exactly 32 bytes (AES-256).
var ErrKeySize = errors.New("secret: key must be 32 bytes")

// Cipher encrypts and decrypts individual config field values with a single
// service-wide AES-256-GCM key.
type Cipher struct {
	gcm cipher.AEAD
}

// New builds a Cipher from a 32-byte key, typically loaded from an
// environment variable at startup.
func New(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secret: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secret: new gcm: %w", err)
	}
	return &Cipher{gcm: gcm}, nil
}

// EncryptField returns base64(nonce || ciphertext) for a single plaintext
// config value.
func (c *Cipher) EncryptField(plaintext string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secret: nonce: %w", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptField reverses EncryptField.
func (c *Cipher) DecryptField(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("secret: decode: %w", err)
	}
	nonceSize := c.gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", errors.New("secret: ciphertext too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("secret: open: %w", err)
	}
	return string(plaintext), nil
}

// EncryptFields encrypts every value in fields in place and sets the
// FieldEncryptedMarker flag in the returned config map copy.
func (c *Cipher) EncryptFields(config map[string]any, fields []string) (map[string]any, error) {
	out := make(map[string]any, len(config)+1)
	for k, v := range config {
		out[k] = v
	}
	for _, field := range fields {
		raw, ok := out[field].(string)
		if !ok {
			continue
		}
		enc, err := c.EncryptField(raw)
		if err != nil {
			return nil, fmt.Errorf("secret: encrypt field %q: %w", field, err)
		}
		out[field] = enc
	}
	out[FieldEncryptedMarker] = true
	return out, nil
}

// DecryptFields reverses EncryptFields; a no-op if the marker isn't set.
func (c *Cipher) DecryptFields(config map[string]any, fields []string) (map[string]any, error) {
	out := make(map[string]any, len(config))
	for k, v := range config {
		out[k] = v
	}
	if marked, _ := out[FieldEncryptedMarker].(bool); !marked {
		return out, nil
	}
	for _, field := range fields {
		enc, ok := out[field].(string)
		if !ok {
			continue
		}
		raw, err := c.DecryptField(enc)
		if err != nil {
			return nil, fmt.Errorf("secret: decrypt field %q: %w", field, err)
		}
		out[field] = raw
	}
	delete(out, FieldEncryptedMarker)
	return out, nil
}
