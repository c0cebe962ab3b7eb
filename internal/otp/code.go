// Package otp issues and verifies email one-time passcodes scoped to (email, purpose).
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"storyloom/backend/internal/security"
)

// CodeLength is the number of digits in a passcode.
const CodeLength = 6

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random 6-digit code. Leading zeros are kept.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// HashCode returns the stored form of code.
func HashCode(code string) string {
	return security.Digest(code)
}

// CodeMatches compares a submitted code against the stored hash as exact strings, in constant time.
func CodeMatches(submitted, codeHash string) bool {
	return security.DigestEqual(submitted, codeHash)
}
