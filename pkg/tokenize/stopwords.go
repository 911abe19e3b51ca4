package tokenize

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"slices"
	"strings"
)

//go:embed stopwords/*.txt
var stopwordFS embed.FS

// Built-in stopword list names.
const (
	ListEnglish = "english"
	ListJava    = "java"
	ListPython  = "python"
	ListGo      = "go"
)

// DefaultLists mirrors the natural language and the language under study
// that corpora were first built for.
var DefaultLists = []string{ListEnglish, ListJava}

// ErrUnknownStopwordList is returned for a list name with no embedded file.
var ErrUnknownStopwordList = errors.New("unknown stopword list")

// Stopwords is an immutable set of lower-case words.
type Stopwords struct {
	set map[string]struct{}
}

// NewStopwords builds a set from words, lower-cased and trimmed.
func NewStopwords(words ...string) Stopwords {
	set := make(map[string]struct{}, len(words))

	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}

	return Stopwords{set: set}
}

// Contains reports whether word is in the set.
func (s Stopwords) Contains(word string) bool {
	_, ok := s.set[word]

	return ok
}

// Len returns the number of words.
func (s Stopwords) Len() int {
	return len(s.set)
}

// Words returns the words sorted.
func (s Stopwords) Words() []string {
	return slices.Sorted(maps.Keys(s.set))
}

// Union returns a new set holding the words of both.
func (s Stopwords) Union(other Stopwords) Stopwords {
	set := make(map[string]struct{}, len(s.set)+len(other.set))
	maps.Copy(set, s.set)
	maps.Copy(set, other.set)

	return Stopwords{set: set}
}

// Lists returns the names of the embedded stopword lists.
func Lists() []string {
	entries, err := stopwordFS.ReadDir("stopwords")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}

	return names
}

// LoadStopwords merges the named embedded lists.
func LoadStopwords(names ...string) (Stopwords, error) {
	var words []string

	for _, name := range names {
		f, err := stopwordFS.Open("stopwords/" + strings.ToLower(name) + ".txt")
		if err != nil {
			return Stopwords{}, fmt.Errorf("%w: %q", ErrUnknownStopwordList, name)
		}

		listWords, readErr := readWordList(f)
		f.Close()

		if readErr != nil {
			return Stopwords{}, fmt.Errorf("read stopword list %s: %w", name, readErr)
		}

		words = append(words, listWords...)
	}

	return NewStopwords(words...), nil
}

// LoadStopwordFiles merges word lists from disk, one word per line. Blank
// lines and lines starting with # are ignored.
func LoadStopwordFiles(paths ...string) (Stopwords, error) {
	var words []string

	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return Stopwords{}, fmt.Errorf("open stopword file: %w", err)
		}

		fileWords, readErr := readWordList(f)
		f.Close()

		if readErr != nil {
			return Stopwords{}, fmt.Errorf("read stopword file %s: %w", p, readErr)
		}

		words = append(words, fileWords...)
	}

	return NewStopwords(words...), nil
}

func readWordList(r io.Reader) ([]string, error) {
	var words []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		words = append(words, line)
	}

	return words, scanner.Err()
}
