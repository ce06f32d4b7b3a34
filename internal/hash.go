package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey returns the hex SHA-256 of v. Throttle keys are built from it so
// account names and client addresses never appear verbatim in Redis.
func HashKey(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
