// Package secret generates and checks the two credential secrets: numeric
// one-time codes and opaque reset tokens.
package secret

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// NumericCode returns a code of the given length drawn uniformly from
// [10^(length-1), 10^length - 1] using crypto/rand. The lower bound keeps
// the leading digit nonzero so every code has exactly `length` digits.
func NumericCode(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}
	min := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	span := new(big.Int).Mul(min, big.NewInt(9)) // 9*10^(length-1) values
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return n.Add(n, min).String(), nil
}

// OpaqueToken returns a random version-4 UUID string. 122 bits of entropy
// make it safe to store raw and use as its own lookup key.
func OpaqueToken() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return u.String(), nil
}

// ValidTokenShape reports whether s parses as a canonical UUID. Used to
// reject malformed reset tokens before any store round-trip.
func ValidTokenShape(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// Hash runs the code through bcrypt at the default cost. The adaptive work
// factor keeps offline guessing of the 6-digit space expensive per guess.
func Hash(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}
	return string(h), nil
}

// Verify compares a presented code against a stored bcrypt hash.
func Verify(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
