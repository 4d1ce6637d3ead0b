// internal/pipeline/fold.go
package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldAccents strips combining marks, so "Électrique" becomes "Electrique".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// FoldKey lowercases, trims and strips accents. Used for accent-insensitive
// comparisons.
func FoldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(FoldAccents(s)))
}
