package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// ShortHash returns the first n hex characters of the SHA-256 digest of s.
// Used to derive collision-free suffixes for per-invocation resource names.
func ShortHash(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	hexed := hex.EncodeToString(sum[:])
	if n <= 0 || n > len(hexed) {
		return hexed
	}
	return hexed[:n]
}
