// Package textproc prepares document text for embedding and indexing:
// normalization for semantic comparison and fixed-window chunking for
// corpus registration.
package textproc

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes text for semantic comparison: lowercase, strip
// punctuation, collapse whitespace runs to single spaces, trim. Two
// documents that differ only in casing, punctuation, or spacing normalize
// to the same string and therefore embed to the same vector.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
			// dropped
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}

	return b.String()
}
