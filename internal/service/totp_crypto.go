package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	secretKeySize = 32
	gcmIVSize     = 12
	gcmTagSize    = 16
)

var ErrSecretCiphertext = errors.New("invalid secret ciphertext")

// SecretCipher cifra secretos TOTP con AES-256-GCM.
// El formato guardado es base64(iv):base64(tag):base64(ciphertext).
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher recibe la clave del operador en hex (64 caracteres).
func NewSecretCipher(hexKey string) (*SecretCipher, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("totp encryption key: %w", err)
	}
	if len(key) != secretKeySize {
		return nil, fmt.Errorf("totp encryption key must be %d bytes, got %d", secretKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, gcmIVSize)
	if err != nil {
		return nil, err
	}
	return &SecretCipher{aead: aead}, nil
}

func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, gcmIVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	body, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]
	enc := base64.StdEncoding
	return enc.EncodeToString(iv) + ":" + enc.EncodeToString(tag) + ":" + enc.EncodeToString(body), nil
}

func (c *SecretCipher) Decrypt(stored string) (string, error) {
	parts := strings.Split(stored, ":")
	if len(parts) != 3 {
		return "", ErrSecretCiphertext
	}
	enc := base64.StdEncoding
	iv, err := enc.DecodeString(parts[0])
	if err != nil || len(iv) != gcmIVSize {
		return "", ErrSecretCiphertext
	}
	tag, err := enc.DecodeString(parts[1])
	if err != nil || len(tag) != gcmTagSize {
		return "", ErrSecretCiphertext
	}
	body, err := enc.DecodeString(parts[2])
	if err != nil {
		return "", ErrSecretCiphertext
	}
	plain, err := c.aead.Open(nil, iv, append(body, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSecretCiphertext, err)
	}
	return string(plain), nil
}
