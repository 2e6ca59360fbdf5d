package twofa

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	sealerSalt       = "twofa-secret-salt"
	sealerIterations = 10000
	minSealerKeyLen  = 16
)

// SecretSealer protects TOTP secrets at rest. Repositories only ever see sealed values.
type SecretSealer interface {
	Seal(secret string) (string, error)
	Open(sealed string) (string, error)
}

// AESSecretSealer seals secrets with AES-256-GCM under a PBKDF2 derived key
type AESSecretSealer struct {
	key []byte
}

// NewAESSecretSealer derives the sealing key from passphrase
func NewAESSecretSealer(passphrase string) (*AESSecretSealer, error) {
	if len(passphrase) < minSealerKeyLen {
		return nil, fmt.Errorf("secret key must be at least %d characters long", minSealerKeyLen)
	}
	key := pbkdf2.Key([]byte(passphrase), []byte(sealerSalt), sealerIterations, 32, sha256.New)
	return &AESSecretSealer{key: key}, nil
}

func (s *AESSecretSealer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts secret and returns nonce||ciphertext in base64
func (s *AESSecretSealer) Seal(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(secret), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *AESSecretSealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", fmt.Errorf("sealed secret cannot be empty")
	}
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("sealed secret too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plain), nil
}
