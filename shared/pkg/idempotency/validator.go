package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// keyPattern restricts keys to alphanumerics, hyphens and underscores, which
// covers UUIDs and client-generated slugs
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateKey checks an idempotency key against the allowed character set and
// the given maximum length.
func ValidateKey(key string, maxLength int) error {
	if key == "" {
		return ErrKeyRequired
	}
	if len(key) > maxLength {
		return ErrKeyTooLong
	}
	if !keyPattern.MatchString(key) {
		return ErrKeyInvalid
	}
	return nil
}

// ComputeFingerprint hashes the request body. Retries with the same key but a
// different body are detected by comparing fingerprints.
func ComputeFingerprint(body []byte) string {
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}

// NormalizeKey trims surrounding whitespace from a header value.
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}
