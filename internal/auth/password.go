// Package auth — password hashing utilities.
//
// WHY BCRYPT?
// bcrypt is a password hashing function designed to be slow, and that
// slowness is the point: it makes offline brute-force attacks expensive.
// It also generates and embeds a random salt per hash, so two users with
// the same password get different hashes and no separate salt column is
// needed. Never store passwords in plain text or with fast hashes.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used in production.
// Cost 12 takes roughly ~250ms on a modern server — negligible for a login,
// brutal for an attacker. Tests inject bcrypt.MinCost instead.
const DefaultCost = 12

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so that the cost can be injected:
// cmd/server reads BCRYPT_COST, tests use the minimum cost to avoid paying
// ~250ms per hashing operation.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the given cost.
// Costs below bcrypt's minimum are clamped up to DefaultCost so a
// misconfigured deployment can't silently weaken hashing.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest creates a PasswordService with bcrypt's minimum
// cost. Use in tests only.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{cost: bcrypt.MinCost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is a self-contained string (salt and cost included) that goes
// straight into users.password_hash. Returns an error for plaintext longer
// than 72 bytes — bcrypt would silently truncate it, so we reject instead.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// Returns nil on a match. The comparison is constant-time inside bcrypt,
// so response timing does not leak how close a guess was.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
