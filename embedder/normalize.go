package embedder

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText performs Unicode NFKC normalization, strips control
// characters other than whitespace and collapses runs of whitespace
// (tabs and newlines included) to single spaces. Every field value
// passes through here before shingling so that both parties canonicalize
// encoding differences the same way.
func NormalizeText(text string) string {
	normed := norm.NFKC.String(text)
	normed = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, normed)
	return strings.Join(strings.Fields(normed), " ")
}
