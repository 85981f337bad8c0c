package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex SHA-256 of s.  It is deterministic so the same
// provider id always maps to the same stored uid.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
