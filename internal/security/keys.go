package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidKey is returned when PEM or key type is invalid.
var ErrInvalidKey = errors.New("invalid key")

// LoadPEM reads content from path if s does not look like inline PEM; otherwise returns s as bytes.
// Inline PEM may carry literal "\n" sequences, as is common when keys are passed through env vars.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(strings.ReplaceAll(s, `\n`, "\n")), nil
	}
	return os.ReadFile(s)
}

// LoadKeyPair parses the JWT signing key and its public counterpart and checks that they match.
// Both accept inline PEM or a file path. Errors name the key and the PEM block type at fault.
func LoadKeyPair(privateSpec, publicSpec string) (crypto.Signer, crypto.PublicKey, error) {
	block, err := decodeKey(privateSpec)
	if err != nil {
		return nil, nil, fmt.Errorf("jwt private key: %w", err)
	}
	priv, err := parseSigner(block)
	if err != nil {
		return nil, nil, fmt.Errorf("jwt private key (%s): %w", block.Type, err)
	}
	if block, err = decodeKey(publicSpec); err != nil {
		return nil, nil, fmt.Errorf("jwt public key: %w", err)
	}
	pub, err := parseVerifier(block)
	if err != nil {
		return nil, nil, fmt.Errorf("jwt public key (%s): %w", block.Type, err)
	}
	type equaler interface{ Equal(crypto.PublicKey) bool }
	if eq, ok := priv.Public().(equaler); !ok || !eq.Equal(pub) {
		return nil, nil, fmt.Errorf("jwt public key does not match private key: %w", ErrInvalidKey)
	}
	if signingMethod(pub) == nil {
		return nil, nil, fmt.Errorf("jwt key type %T: %w", pub, ErrInvalidKey)
	}
	return priv, pub, nil
}

func decodeKey(spec string) (*pem.Block, error) {
	raw, err := LoadPEM(spec)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block: %w", ErrInvalidKey)
	}
	return block, nil
}

// parseSigner accepts PKCS#1 RSA, SEC 1 EC, and PKCS#8 private keys.
func parseSigner(block *pem.Block) (crypto.Signer, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		if signer, ok := key.(crypto.Signer); ok {
			return signer, nil
		}
	}
	return nil, ErrInvalidKey
}

// parseVerifier accepts PKCS#1 RSA and PKIX public keys.
func parseVerifier(block *pem.Block) (crypto.PublicKey, error) {
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	}
	return nil, ErrInvalidKey
}

// signingMethod maps a key to its JWT algorithm, or nil when the key type is unsupported.
func signingMethod(pub crypto.PublicKey) jwt.SigningMethod {
	switch pub.(type) {
	case *rsa.PublicKey:
		return jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		return jwt.SigningMethodES256
	}
	return nil
}
