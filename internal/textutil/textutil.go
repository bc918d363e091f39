package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"
)

// Digest computes a SHA-256 hex digest, used to show that two runs wrote
// identical artifacts.
func Digest(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// Truncate shortens s to at most maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
