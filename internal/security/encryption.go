// Package security protects sensitive card fields at rest.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"academy-platform/internal/core/domain"
)

// KeyMaterial is the secret injected at construction. Only the first 32 bytes are used.
type KeyMaterial []byte

// EncryptionService encrypts with AES-256-GCM. The nonce is random per call and
// stored in front of the ciphertext, so equal inputs never encrypt the same way.
type EncryptionService struct {
	aead cipher.AEAD
}

func NewEncryptionService(key KeyMaterial) (*EncryptionService, error) {
	if len(key) < 32 {
		return nil, domain.ErrInvalidKey
	}

	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	return &EncryptionService{aead: aead}, nil
}

// Encrypt returns base64(nonce || sealed). Empty input is returned unchanged.
func (s *EncryptionService) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A wrong key or tampered input yields domain.ErrDecryption.
func (s *EncryptionService) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return ciphertext, nil
	}

	buffer, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: malformed input", domain.ErrDecryption)
	}

	nonceSize := s.aead.NonceSize()
	if len(buffer) < nonceSize+s.aead.Overhead() {
		return "", fmt.Errorf("%w: input too short", domain.ErrDecryption)
	}

	plaintext, err := s.aead.Open(nil, buffer[:nonceSize], buffer[nonceSize:], nil)
	if err != nil {
		// The key may be incorrect; the cause is not exposed.
		return "", domain.ErrDecryption
	}

	return string(plaintext), nil
}
