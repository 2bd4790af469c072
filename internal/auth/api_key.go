// Package auth owns API-key and admin credential handling. The metering core
// never sees raw credentials; it consumes the resolved subscriber projection.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// APIKeyPrefix marks every key issued by this gateway so leaked keys are
// recognizable in logs and secret scanners.
const APIKeyPrefix = "vbp_"

// GenerateAPIKey returns a new random API key in the form vbp_<32 hex chars>.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(buf)[:32], nil
}

// HashAPIKey returns the hex SHA-256 of a key. Only the hash is persisted;
// lookup hashes the presented key and matches on the digest.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ValidFormat reports whether a presented key has the issued shape, letting
// the middleware reject junk before touching storage.
func ValidFormat(key string) bool {
	return strings.HasPrefix(key, APIKeyPrefix) && len(key) == len(APIKeyPrefix)+32
}
