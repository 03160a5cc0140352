// Package identity derives stable, content-based identifiers used to
// reconcile books and highlights across sources.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// BookID returns a deterministic identifier for a book:
// hex(SHA256(normalize(title) + normalize(author)))[:16].
// Two records with the same normalized title and author always resolve to
// the same ID, independent of source or extraction order.
func BookID(title, author string) string {
	input := normalize(title) + normalize(author)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:8])
}

// NormalizeText produces the comparison key used to deduplicate highlights.
// The key is never stored or shown to the user; the original text is what
// ends up in the output.
func NormalizeText(text string) string {
	return normalize(text)
}

// normalize trims, lowercases and collapses internal whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
