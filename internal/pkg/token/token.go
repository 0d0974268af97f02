package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// New generates a cryptographically random 64-character hex token
// (32 bytes of entropy) for use as a magic-link credential.
func New() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Digest returns the hex-encoded sha256 digest of a raw token. Only digests
// are persisted, so a leaked store snapshot cannot be replayed as a login.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
