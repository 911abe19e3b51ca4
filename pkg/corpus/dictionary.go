package corpus

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrInvalidDictionary is returned when dictionary entries cannot be restored.
var ErrInvalidDictionary = errors.New("invalid dictionary")

// TermCount is one sparse bag-of-words component.
type TermCount struct {
	ID    int
	Count int
}

// BagOfWords is a sparse term-count vector sorted by term id.
type BagOfWords []TermCount

// Total returns the summed counts.
func (b BagOfWords) Total() int {
	total := 0
	for _, tc := range b {
		total += tc.Count
	}

	return total
}

// DictionaryEntry is a persisted dictionary row.
type DictionaryEntry struct {
	ID      int
	Term    string
	DocFreq int
}

// Dictionary maps terms to dense integer ids and tracks document
// frequencies. Ids are assigned in order of first appearance, with the new
// terms of one document numbered in lexical order. A frozen dictionary never
// changes.
type Dictionary struct {
	token2id map[string]int
	id2token []string
	dfs      []int
	cfs      []int
	numDocs  int
	numPos   int
	numNNZ   int
	frozen   bool
}

// NewDictionary creates an empty, growable dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{token2id: make(map[string]int)}
}

// RestoreDictionary rebuilds a frozen dictionary from persisted entries.
// Ids must be exactly 0..len(entries)-1 and terms unique.
func RestoreDictionary(numDocs int, entries []DictionaryEntry) (*Dictionary, error) {
	if numDocs < 0 {
		return nil, fmt.Errorf("%w: negative document count %d", ErrInvalidDictionary, numDocs)
	}

	d := &Dictionary{
		token2id: make(map[string]int, len(entries)),
		id2token: make([]string, len(entries)),
		dfs:      make([]int, len(entries)),
		cfs:      make([]int, len(entries)),
		numDocs:  numDocs,
		frozen:   true,
	}

	seen := make([]bool, len(entries))

	for _, e := range entries {
		if e.ID < 0 || e.ID >= len(entries) || seen[e.ID] {
			return nil, fmt.Errorf("%w: id %d out of range or repeated", ErrInvalidDictionary, e.ID)
		}

		if _, dup := d.token2id[e.Term]; dup {
			return nil, fmt.Errorf("%w: duplicate term %q", ErrInvalidDictionary, e.Term)
		}

		seen[e.ID] = true
		d.token2id[e.Term] = e.ID
		d.id2token[e.ID] = e.Term
		d.dfs[e.ID] = e.DocFreq
	}

	return d, nil
}

// Doc2Bow converts terms to a bag of words. With allowUpdate on an unfrozen
// dictionary, unknown terms are added and the statistics updated; otherwise
// unknown terms are dropped.
func (d *Dictionary) Doc2Bow(terms []string, allowUpdate bool) BagOfWords {
	update := allowUpdate && !d.frozen

	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t]++
	}

	if update {
		for _, t := range slices.Sorted(maps.Keys(counts)) {
			if _, ok := d.token2id[t]; !ok {
				d.token2id[t] = len(d.id2token)
				d.id2token = append(d.id2token, t)
				d.dfs = append(d.dfs, 0)
				d.cfs = append(d.cfs, 0)
			}
		}
	}

	bag := make(BagOfWords, 0, len(counts))

	for t, n := range counts {
		if id, ok := d.token2id[t]; ok {
			bag = append(bag, TermCount{ID: id, Count: n})
		}
	}

	slices.SortFunc(bag, func(a, b TermCount) int { return a.ID - b.ID })

	if update {
		d.numDocs++
		d.numPos += len(terms)
		d.numNNZ += len(bag)

		for _, tc := range bag {
			d.dfs[tc.ID]++
			d.cfs[tc.ID] += tc.Count
		}
	}

	return bag
}

// AddDocument grows the dictionary with one document's terms.
func (d *Dictionary) AddDocument(terms []string) {
	d.Doc2Bow(terms, true)
}

// Freeze stops all further growth.
func (d *Dictionary) Freeze() {
	d.frozen = true
}

// Frozen reports whether the dictionary is read-only.
func (d *Dictionary) Frozen() bool {
	return d.frozen
}

// ID returns the id of term.
func (d *Dictionary) ID(term string) (int, bool) {
	id, ok := d.token2id[term]

	return id, ok
}

// Token returns the term with the given id.
func (d *Dictionary) Token(id int) (string, bool) {
	if id < 0 || id >= len(d.id2token) {
		return "", false
	}

	return d.id2token[id], true
}

// DocFreq returns the number of documents containing the term with id.
func (d *Dictionary) DocFreq(id int) int {
	if id < 0 || id >= len(d.dfs) {
		return 0
	}

	return d.dfs[id]
}

// CollectionFreq returns the total occurrences of the term with id. It is
// zero for restored dictionaries.
func (d *Dictionary) CollectionFreq(id int) int {
	if id < 0 || id >= len(d.cfs) {
		return 0
	}

	return d.cfs[id]
}

// Len returns the number of terms.
func (d *Dictionary) Len() int {
	return len(d.id2token)
}

// NumDocs returns the number of documents added.
func (d *Dictionary) NumDocs() int { return d.numDocs }

// NumPos returns the number of term occurrences added.
func (d *Dictionary) NumPos() int { return d.numPos }

// NumNNZ returns the number of non-zero bag entries added.
func (d *Dictionary) NumNNZ() int { return d.numNNZ }

// Terms returns the terms ordered by id.
func (d *Dictionary) Terms() []string {
	return slices.Clone(d.id2token)
}

// Entries returns one row per term ordered by id.
func (d *Dictionary) Entries() []DictionaryEntry {
	out := make([]DictionaryEntry, len(d.id2token))
	for id, term := range d.id2token {
		out[id] = DictionaryEntry{ID: id, Term: term, DocFreq: d.dfs[id]}
	}

	return out
}
