// Package sha256 computes the content fingerprints used for change detection.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a hex-encoded fingerprint.
const Size = sha256.Size * 2

// Fingerprint returns the lowercase hex SHA-256 digest of the UTF-8 signal.
func Fingerprint(signal string) string {
	sum := sha256.Sum256([]byte(signal))
	return hex.EncodeToString(sum[:])
}

// Valid reports whether s looks like a fingerprint produced by Fingerprint.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
