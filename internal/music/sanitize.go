package music

import (
	"strings"
	"unicode"
)

// keepRunes are the punctuation characters allowed in cache file names
const keepRunes = " ._-()[]"

// Sanitize turns a free-text title into a filesystem-safe fragment.
// Letters and digits of any script are kept along with space, '.', '_', '-',
// parentheses and square brackets. Everything else is dropped and the
// result is trimmed of surrounding whitespace.
func Sanitize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || strings.ContainsRune(keepRunes, r) {
			sb.WriteRune(r)
		}
	}

	return strings.TrimSpace(sb.String())
}
