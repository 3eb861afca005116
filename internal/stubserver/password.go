package stubserver

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Ошибки хеширования
var (
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordMismatch = errors.New("password does not match hash")
	ErrInvalidHash      = errors.New("invalid password hash format")
	ErrPasswordTooLong  = errors.New("password exceeds maximum length of 72 bytes")
)

// MaxPasswordLength - максимальная длина пароля для bcrypt (72 байта)
const MaxPasswordLength = 72

// hashPassword хеширует пароль bcrypt; cost приводится к [MinCost, MaxCost]
func hashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}

	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// verifyPassword проверяет пароль (constant-time внутри bcrypt)
func verifyPassword(password, hash string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if hash == "" {
		return ErrInvalidHash
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return ErrInvalidHash
	}
	return nil
}
