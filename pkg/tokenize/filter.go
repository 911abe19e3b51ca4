package tokenize

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMinLength drops single-character terms.
const DefaultMinLength = 2

// Filter removes terms that carry no topical signal. It is immutable and
// safe for concurrent use.
type Filter struct {
	stops  Stopwords
	minLen int
}

// NewFilter creates a filter dropping the given stopwords and any term with
// fewer than minLen letters or digits.
func NewFilter(stops Stopwords, minLen int) *Filter {
	return &Filter{stops: stops, minLen: max(minLen, 0)}
}

// MinLength returns the configured minimum term length.
func (f *Filter) MinLength() int {
	return f.minLen
}

// Keep reports whether a single term survives the filter.
func (f *Filter) Keep(term string) bool {
	if term == "" || f.stops.Contains(term) {
		return false
	}

	stripped := strings.TrimFunc(term, isPunctOrSpace)
	if stripped == "" {
		return false
	}

	if IsNumeric(stripped) {
		return false
	}

	return utf8.RuneCountInString(stripped) >= f.minLen
}

// Apply returns the surviving terms in input order.
func (f *Filter) Apply(terms []string) []string {
	out := terms[:0:0]

	for _, term := range terms {
		if f.Keep(term) {
			out = append(out, term)
		}
	}

	return out
}

// IsNumeric reports whether s parses as a decimal integer or as a decimal
// float containing at least one digit, so "inf" and "nan" stay words.
// Base prefixes and digit separators make a word: "0x1f" and "1_000" are kept.
func IsNumeric(s string) bool {
	if s == "" || strings.ContainsRune(s, '_') || hasBasePrefix(s) {
		return false
	}

	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return true
	}

	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return strings.ContainsFunc(s, unicode.IsDigit)
	}

	// Integers too large for int64 are still numbers.
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
}

func hasBasePrefix(s string) bool {
	s = strings.TrimLeft(s, "+-")
	if len(s) < 2 || s[0] != '0' {
		return false
	}

	switch s[1] {
	case 'x', 'X', 'o', 'O', 'b', 'B':
		return true
	}

	return false
}

func isPunctOrSpace(r rune) bool {
	return unicode.IsSpace(r) || !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r))
}
