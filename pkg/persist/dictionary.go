package persist

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/topicofchange/pkg/corpus"
)

// WriteDictionary writes the document count followed by one
// "<id>\t<term>\t<docfreq>" row per term in id order.
func WriteDictionary(w io.Writer, dict *corpus.Dictionary) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%d\n", dict.NumDocs())

	for _, e := range dict.Entries() {
		fmt.Fprintf(bw, "%d\t%s\t%d\n", e.ID, e.Term, e.DocFreq)
	}

	err := bw.Flush()
	if err != nil {
		return fmt.Errorf("dictionary: %w", err)
	}

	return nil
}

// ReadDictionary parses WriteDictionary output into a frozen dictionary.
func ReadDictionary(r io.Reader) (*corpus.Dictionary, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: dictionary: %w", ErrCorruptCorpus, err)
		}

		return nil, fmt.Errorf("%w: dictionary: empty file", ErrCorruptCorpus)
	}

	numDocs, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return nil, fmt.Errorf("%w: dictionary document count: %w", ErrCorruptCorpus, err)
	}

	var entries []corpus.DictionaryEntry

	for line := 2; scanner.Scan(); line++ {
		entry, parseErr := parseDictionaryRow(scanner.Text())
		if parseErr != nil {
			return nil, fmt.Errorf("%w: dictionary line %d: %w", ErrCorruptCorpus, line, parseErr)
		}

		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: dictionary: %w", ErrCorruptCorpus, err)
	}

	dict, err := corpus.RestoreDictionary(numDocs, entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptCorpus, err)
	}

	return dict, nil
}

func parseDictionaryRow(row string) (corpus.DictionaryEntry, error) {
	parts := strings.Split(row, "\t")
	if len(parts) != 3 {
		return corpus.DictionaryEntry{}, fmt.Errorf("want 3 tab separated fields, got %d", len(parts))
	}

	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return corpus.DictionaryEntry{}, fmt.Errorf("id: %w", err)
	}

	df, err := strconv.Atoi(parts[2])
	if err != nil {
		return corpus.DictionaryEntry{}, fmt.Errorf("document frequency: %w", err)
	}

	return corpus.DictionaryEntry{ID: id, Term: parts[1], DocFreq: df}, nil
}
