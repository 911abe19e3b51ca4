// Package tokenize turns normalized text into filtered term sequences:
// tokenizing, identifier splitting, lower-casing and stopword removal.
package tokenize

import (
	"unicode"
)

// charClass is the splitter's view of a rune.
type charClass int

const (
	classNone charClass = iota
	classUpper
	classLower
	classDigit
	classPunct
)

func classify(r rune) charClass {
	switch {
	case unicode.IsUpper(r) || unicode.IsTitle(r):
		return classUpper
	case unicode.IsLetter(r):
		// Caseless scripts split like lowercase.
		return classLower
	case unicode.IsDigit(r):
		return classDigit
	default:
		return classPunct
	}
}

// Split applies SplitToken to every token and concatenates the results.
func Split(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, SplitToken(tok)...)
	}

	return out
}

// SplitToken decomposes an identifier into sub-terms:
//
//	camelCase   -> camel Case
//	XMLRead     -> XML Read
//	readXML     -> read XML
//	camel2case  -> camel 2 case
//	snake_case  -> snake _ case
//
// Digit runs and punctuation are kept as their own terms; Filter drops them.
func SplitToken(tok string) []string {
	var (
		out  []string
		buf  []rune
		prev = classNone
	)

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range tok {
		if unicode.IsMark(r) && len(buf) > 0 {
			buf = append(buf, r)

			continue
		}

		class := classify(r)

		switch {
		case class == classPunct:
			flush()
			out = append(out, string(r))
			prev = classNone

			continue
		case prev == classUpper && class == classLower && len(buf) > 1:
			// The last capital of an acronym run starts the next word.
			last := buf[len(buf)-1]
			buf = buf[:len(buf)-1]
			flush()
			buf = append(buf, last)
		case prev == classLower && class == classUpper,
			prev == classDigit && class != classDigit,
			prev != classDigit && prev != classNone && class == classDigit:
			flush()
		}

		buf = append(buf, r)
		prev = class
	}

	flush()

	return out
}
