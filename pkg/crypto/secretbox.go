// Package crypto шифрует секреты, которые хранятся на стороне сервиса (API secret биржи).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// KeySize - длина ключа AES-256
const KeySize = 32

// Ошибки шифрования
var (
	ErrInvalidKeyLength  = errors.New("encryption key must be exactly 32 bytes for AES-256")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed: authentication error")
)

// SecretBox шифрует строки AES-256-GCM. Результат - base64(nonce || ciphertext || tag).
//
// Безопасен для конкурентного использования.
type SecretBox struct {
	gcm cipher.AEAD
}

// NewSecretBox создает box с ключом длины KeySize
func NewSecretBox(key []byte) (*SecretBox, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &SecretBox{gcm: gcm}, nil
}

// Seal шифрует plaintext со случайным nonce
func (b *SecretBox) Seal(plaintext string) (string, error) {
	nonce := make([]byte, b.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := b.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open расшифровывает результат Seal и проверяет тег
func (b *SecretBox) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	nonceSize := b.gcm.NonceSize()
	if len(raw) < nonceSize+b.gcm.Overhead() {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := b.gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// GenerateKey - случайный ключ длины KeySize
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// ParseKey читает ключ из base64 (стандартного или URL-safe, как у Fernet)
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(s); err == nil {
			if len(key) != KeySize {
				return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyLength, len(key))
			}
			return key, nil
		}
	}
	return nil, errors.New("encryption key must be base64 encoded")
}
