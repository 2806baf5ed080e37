package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	// scrypt cost parameters: N=2^15, r=8, p=1, 32-byte key.
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32

	saltLen = 16
)

// Sealer encrypts credential records at rest with AES-GCM, using a key
// derived from a local secret via scrypt. The sealed form is
// [salt][nonce][ciphertext+tag]; the salt is generated per Sealer so two
// machines sharing a secret still produce distinct keys.
type Sealer struct {
	secret []byte
}

// NewSealer creates a sealer from a local secret (e.g. a per-install random
// value or OS-provided machine secret).
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("sealer secret must not be empty")
	}
	return &Sealer{secret: append([]byte(nil), secret...)}, nil
}

// Seal encrypts plaintext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	out := make([]byte, 0, saltLen+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts a sealed payload.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < saltLen {
		return nil, fmt.Errorf("sealed payload too short")
	}
	salt, rest := sealed[:saltLen], sealed[saltLen:]

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed payload too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("opening sealed record: %w", err)
	}
	return plaintext, nil
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(s.secret, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	return cipher.NewGCM(block)
}
