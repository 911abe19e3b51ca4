package persist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/topicofchange/pkg/corpus"
)

// ErrCorruptCorpus marks persisted files that cannot be used.
var ErrCorruptCorpus = errors.New("corrupt corpus")

// unknownLang is written when a document carries no language tag.
const unknownLang = "__unknown__"

// maxLineSize bounds one Mallet line; commit documents can be large.
const maxLineSize = 64 << 20

var (
	idEscaper   = strings.NewReplacer("%", "%25", " ", "%20", "\t", "%09", "\n", "%0A", "\r", "%0D")
	idUnescaper = strings.NewReplacer("%25", "%", "%20", " ", "%09", "\t", "%0A", "\n", "%0D", "\r")
)

// WriteMallet writes one line per entry, expanding each bag back into its
// terms. Entries without metadata are numbered from zero. It returns the
// number of documents written.
func WriteMallet(w io.Writer, entries iter.Seq2[corpus.Entry, error], dict *corpus.Dictionary) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0

	for e, err := range entries {
		if err != nil {
			return n, err
		}

		id, lang := e.Meta.ID, e.Meta.Lang
		if id == "" {
			id = strconv.Itoa(n)
		}

		if lang == "" {
			lang = unknownLang
		}

		bw.WriteString(idEscaper.Replace(id))
		bw.WriteByte(' ')
		bw.WriteString(lang)

		for _, tc := range e.Bag {
			term, ok := dict.Token(tc.ID)
			if !ok {
				return n, fmt.Errorf("mallet: term id %d not in dictionary", tc.ID)
			}

			for range tc.Count {
				bw.WriteByte(' ')
				bw.WriteString(term)
			}
		}

		bw.WriteByte('\n')

		n++
	}

	err := bw.Flush()
	if err != nil {
		return n, fmt.Errorf("mallet: %w", err)
	}

	return n, nil
}

// ReadMallet parses Mallet lines into documents. Malformed lines end the
// sequence with ErrCorruptCorpus.
func ReadMallet(r io.Reader) iter.Seq2[corpus.Document, error] {
	return func(yield func(corpus.Document, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		line := 0

		for scanner.Scan() {
			line++

			fields := strings.Fields(scanner.Text())
			if len(fields) < 2 {
				yield(corpus.Document{}, fmt.Errorf("%w: mallet line %d: want id and lang", ErrCorruptCorpus, line))

				return
			}

			doc := corpus.Document{
				Terms:    fields[2:],
				Metadata: corpus.Metadata{ID: idUnescaper.Replace(fields[0]), Lang: fields[1]},
			}

			if !yield(doc, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(corpus.Document{}, fmt.Errorf("%w: mallet: %w", ErrCorruptCorpus, err))
		}
	}
}

// MalletSource re-reads a persisted Mallet file on every pass, so a loaded
// corpus can be iterated like a freshly built one.
type MalletSource struct {
	path       string
	compressed bool
}

var _ corpus.DocumentSource = (*MalletSource)(nil)

// NewMalletSource reads the Mallet file at path, lz4 framed if compressed.
func NewMalletSource(path string, compressed bool) *MalletSource {
	return &MalletSource{path: path, compressed: compressed}
}

// Documents implements corpus.DocumentSource.
func (s *MalletSource) Documents(ctx context.Context) iter.Seq2[corpus.Document, error] {
	return func(yield func(corpus.Document, error) bool) {
		file, err := os.Open(s.path)
		if err != nil {
			yield(corpus.Document{}, fmt.Errorf("open mallet: %w", err))

			return
		}
		defer file.Close()

		var r io.Reader = file
		if s.compressed {
			r = lz4.NewReader(file)
		}

		for doc, readErr := range ReadMallet(r) {
			if readErr == nil {
				readErr = ctx.Err()
			}

			if readErr != nil {
				yield(corpus.Document{}, readErr)

				return
			}

			if !yield(doc, nil) {
				return
			}
		}
	}
}
