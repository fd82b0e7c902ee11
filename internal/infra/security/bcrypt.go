package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor applied to every stored secret.
const DefaultBcryptCost = 10

// BcryptHasher hashes passwords and security-question answers with bcrypt.
// Salting is per call and embedded in the encoded hash.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher constructs a hasher with the default work factor.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: DefaultBcryptCost}
}

// NewBcryptHasherWithCost constructs a hasher with an explicit work factor.
// Costs outside bcrypt's supported range fall back to the default.
func NewBcryptHasherWithCost(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash generates a salted bcrypt hash for the provided secret.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret must not be empty")
	}

	encoded, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}

	return string(encoded), nil
}

// Verify compares the provided secret against a stored bcrypt hash. A malformed
// stored hash verifies as false; the comparison itself is constant time.
func (h *BcryptHasher) Verify(secret string, encoded string) (bool, error) {
	if secret == "" || encoded == "" {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, fmt.Errorf("verify secret: %w", err)
}
