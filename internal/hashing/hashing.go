// Package hashing fingerprints identity-defining values. The same input always
// yields the same lowercase hex SHA-256 digest, so digests can serve as unique
// lookup keys for idempotency keys, phone numbers and URLs.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex-encoded SHA-256 digest of input.
func Hash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// IdempotencyKey fingerprints a message by its sender, recipient and content.
func IdempotencyKey(sender, recipient, content string) string {
	return Hash(sender + recipient + content)
}
