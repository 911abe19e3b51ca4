package tokenize

import (
	"strings"
	"unicode"
)

// isWordRune reports whether r belongs inside a raw token. Underscore and
// hyphen stay inside so identifiers reach the splitter whole.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_' || r == '-'
}

// Tokenize splits text on whitespace. Every other non-word rune becomes a
// token of its own: "foo.bar(x)" yields foo . bar ( x ).
func Tokenize(text string) []string {
	var tokens []string

	for _, field := range strings.Fields(text) {
		start := -1

		for i, r := range field {
			if isWordRune(r) {
				if start < 0 {
					start = i
				}

				continue
			}

			if start >= 0 {
				tokens = append(tokens, field[start:i])
				start = -1
			}

			tokens = append(tokens, string(r))
		}

		if start >= 0 {
			tokens = append(tokens, field[start:])
		}
	}

	return tokens
}
