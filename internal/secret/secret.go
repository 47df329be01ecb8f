// Package secret seals and opens the remote API credential so it is never
// written to disk in the clear. The key lives in a machine-local file next
// to the database; ciphertexts are self-contained (nonce prepended).
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	keyFileName  = ".mobridge.key"
	keyFileBytes = 32
)

var hkdfInfo = []byte("mobridge credential sealing v1")

// Sealer encrypts and decrypts short secrets with a locally held key.
type Sealer struct {
	aeadKey []byte
}

// NewSealer loads the key file from dir, creating it on first use.
func NewSealer(dir string) (*Sealer, error) {
	if dir == "" {
		return nil, fmt.Errorf("key directory is required")
	}
	master, err := loadOrCreateKey(filepath.Join(dir, keyFileName))
	if err != nil {
		return nil, err
	}

	aeadKey := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, master, nil, hkdfInfo)
	if _, err := io.ReadFull(kdf, aeadKey); err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}
	return &Sealer{aeadKey: aeadKey}, nil
}

// Seal encrypts plaintext and returns a base64 token.
func (s *Sealer) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.aeadKey)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a token produced by Seal.
func (s *Sealer) Open(token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("malformed credential token: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.aeadKey)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("malformed credential token: too short")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("credential token rejected: %w", err)
	}
	return string(plaintext), nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		key, decodeErr := base64.StdEncoding.DecodeString(string(raw))
		if decodeErr != nil || len(key) != keyFileBytes {
			return nil, fmt.Errorf("corrupt key file %s", path)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	key := make([]byte, keyFileBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}
