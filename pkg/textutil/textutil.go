package textutil

import (
	"crypto/md5"
	"fmt"
)

// HashText returns a stable hex digest of the input, used as a cache key for
// embeddings. Not a security boundary.
func HashText(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// Truncate caps s at max runes. Callers apply this right before an embedding
// request; the normalizer itself never truncates.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
