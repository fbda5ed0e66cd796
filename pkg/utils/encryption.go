package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"github.com/muraselchat/murasel-backend/pkg/apperr"
)

// Cipher encrypts message bodies at rest with AES-256-GCM. The random nonce is
// prepended to the ciphertext and the whole blob is base64-encoded, so a stored
// string is self-contained for decryption.
type Cipher struct {
	aead cipher.AEAD
}

// ParseKey decodes a base64-encoded 32-byte key (generate with: openssl rand -base64 32).
func ParseKey(keyBase64 string) ([]byte, error) {
	if keyBase64 == "" {
		return nil, errors.New("encryption key not set")
	}
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, errors.New("encryption key must be base64-encoded")
	}
	if len(key) != 32 {
		return nil, errors.New("encryption key must decode to exactly 32 bytes (256 bits)")
	}
	return key, nil
}

// NewCipher builds a Cipher from a raw 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext. Empty input stays empty.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Corruption, truncation and key
// mismatch all surface as apperr.Decryption so callers can degrade to a
// placeholder instead of failing the whole page.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", apperr.Wrap(apperr.Decryption, "ciphertext is not valid base64", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", apperr.New(apperr.Decryption, "ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.Decryption, "ciphertext unreadable", err)
	}

	return string(plaintext), nil
}
