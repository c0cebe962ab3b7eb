package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Digest returns the hex-encoded SHA-256 of s. Used to store refresh tokens and one-time
// passcodes without keeping the raw value.
func Digest(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// DigestEqual reports whether Digest(provided) equals storedDigest, in constant time.
func DigestEqual(provided, storedDigest string) bool {
	return subtle.ConstantTimeCompare([]byte(Digest(provided)), []byte(storedDigest)) == 1
}
