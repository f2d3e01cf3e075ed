package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Digest returns a deterministic composite key: prefix + ":" + first 16 hex
// chars of sha256 over the ordered parts. Order is significant.
func Digest(prefix string, parts []string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	sum := hex.EncodeToString(h.Sum(nil))[:16]
	if prefix == "" {
		return sum
	}
	return prefix + ":" + sum
}

// Bracketed renders parts as "[a,b,c]".
func Bracketed(parts []string) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strings.Join(parts, ","))
	b.WriteByte(']')
	return b.String()
}
