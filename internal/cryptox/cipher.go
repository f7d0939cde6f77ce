// Package cryptox provides field-level encryption for data classified
// sensitive at rest (transaction descriptions). The key is derived once at
// startup from configured key material; there is no runtime rotation path.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// ErrDecryptionFailed is returned for any ciphertext that cannot be
// authenticated and decrypted. Callers must treat it as a data-integrity
// fault; garbage plaintext is never returned.
var ErrDecryptionFailed = errors.New("decryption failed")

const (
	keyLen        = 32 // AES-256
	kdfIterations = 100_000
	nonceLen      = 12
)

// FieldCipher encrypts and decrypts individual string fields with
// AES-256-GCM. A fresh random nonce is generated per encryption and
// prepended to the ciphertext; the wire form is base64.
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher derives an AES-256 key from the passphrase and salt with
// PBKDF2-SHA256 and prepares the AEAD. Both inputs come from configuration
// and must be set before the service starts handling requests.
func NewFieldCipher(passphrase, salt string) (*FieldCipher, error) {
	if passphrase == "" {
		return nil, errors.New("encryption key material is empty")
	}

	key := pbkdf2.Key([]byte(passphrase), []byte(salt), kdfIterations, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &FieldCipher{aead: aead}, nil
}

// Encrypt seals the plaintext and returns base64(nonce || ciphertext).
// Empty input encrypts to the empty string so optional fields stay optional.
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Malformed or tampered input yields
// ErrDecryptionFailed.
func (c *FieldCipher) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(raw) < nonceLen {
		return "", ErrDecryptionFailed
	}

	nonce, ciphertext := raw[:nonceLen], raw[nonceLen:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
