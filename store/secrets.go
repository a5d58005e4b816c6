package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	encryptedValuePrefix = "enc:v1:"
	keyInfo              = "mcp-oracle-scm token store v1"
)

type secretCodec struct {
	aead cipher.AEAD
}

func newSecretCodec(secretKey, scope string) (*secretCodec, error) {
	key, err := deriveSecretKey(secretKey, scope)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &secretCodec{aead: aead}, nil
}

// deriveSecretKey expands an explicit key when one is configured, else local
// user, host and database path, into a 32 byte AES key with HKDF-SHA256.
func deriveSecretKey(secretKey, scope string) ([]byte, error) {
	var secret []byte
	if key := strings.TrimSpace(secretKey); key != "" {
		secret = []byte(key)
		if decoded, err := base64.StdEncoding.DecodeString(key); err == nil && len(decoded) > 0 {
			secret = decoded
		}
	} else {
		username := "unknown"
		if current, err := user.Current(); err == nil && current != nil {
			username = current.Username
		}
		hostname, _ := os.Hostname()
		secret = []byte(fmt.Sprintf("%s:%s:%s", username, hostname, strings.TrimSpace(scope)))
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return key, nil
}

func (c *secretCodec) encrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(value), nil)
	return encryptedValuePrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *secretCodec) decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, encryptedValuePrefix) {
		return value, nil
	}
	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encryptedValuePrefix))
	if err != nil {
		return "", err
	}
	nonceSize := c.aead.NonceSize()
	if len(payload) < nonceSize {
		return "", errors.New("encrypted payload is too short")
	}
	plaintext, err := c.aead.Open(nil, payload[:nonceSize], payload[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
