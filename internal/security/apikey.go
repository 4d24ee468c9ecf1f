package security

import (
	"crypto/sha256"
	"crypto/subtle"
)

// APIKeyHeader carries the client API key on every /api request
const APIKeyHeader = "X-API-Key"

// VerifyAPIKey compares a presented key against the configured one in constant time.
// Both values are hashed first so their lengths do not leak.
func VerifyAPIKey(presented, expected string) bool {
	if presented == "" || expected == "" {
		return false
	}
	p := sha256.Sum256([]byte(presented))
	e := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(p[:], e[:]) == 1
}
