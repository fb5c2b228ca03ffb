package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Cipher seals stored blocks with AES-256-GCM. The random nonce is prepended
// to every ciphertext.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher builds a Cipher from a raw 32-byte data encryption key.
func NewCipher(dek []byte) (*Cipher, error) {
	if len(dek) != 32 {
		return nil, fmt.Errorf("data encryption key must be 32 bytes, got %d", len(dek))
	}
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{gcm: gcm}, nil
}

// CipherFromBase64 decodes a base64 DEK (as found in DHAROHAR_DEK). An empty
// string yields a nil Cipher, meaning blocks are stored in the clear.
func CipherFromBase64(dekB64 string) (*Cipher, error) {
	if dekB64 == "" {
		return nil, nil
	}
	dek, err := base64.StdEncoding.DecodeString(dekB64)
	if err != nil {
		return nil, fmt.Errorf("decode data encryption key: %w", err)
	}
	return NewCipher(dek)
}

// Encrypt encrypts plaintext using AES-256-GCM and a random nonce
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext using AES-256-GCM
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := c.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return c.gcm.Open(nil, nonce, ct, nil)
}
