// Package sha256 provides the SHA-256 digests used to keep derived names
// short and stable.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hex returns the lowercase hex digest of s.
func Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Prefix returns the first n hex characters of the digest of s. n is clamped
// to the digest length.
func Prefix(s string, n int) string {
	digest := Hex(s)
	if n < 0 {
		n = 0
	}
	if n > len(digest) {
		n = len(digest)
	}
	return digest[:n]
}
