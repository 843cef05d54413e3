package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcaverela/todo-backend/internal/api"
)

var _ PasswordHasher = (*BcryptHasher)(nil)

// PasswordHasher hashes and verifies credentials.
type PasswordHasher interface {
	// Hash returns the salted hash of plaintext. It fails only on an
	// underlying algorithm fault and never falls back to the plaintext.
	Hash(plaintext string) (string, error)

	// Compare reports whether plaintext matches hash. A normal mismatch
	// returns (false, nil); an error is returned only on an algorithm fault.
	Compare(plaintext, hash string) (bool, error)
}

// BcryptHasher wraps bcrypt with a configurable cost factor.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher clamps cost into bcrypt's supported range. A zero value
// falls back to bcrypt's default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w: %w", err, api.ErrInternal)
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Compare(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("failed to compare password: %w: %w", err, api.ErrInternal)
}
