package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "topicofchange.corpus"

// ErrLengthUnknown is returned by Len before a full pass has completed.
var ErrLengthUnknown = errors.New("corpus length unknown until a full pass completes")

// Entry is one corpus element. Meta is the zero value unless the corpus was
// created WithMetadata.
type Entry struct {
	Bag  BagOfWords
	Meta Metadata
}

// Corpus is a re-iterable sequence of bags of words over a DocumentSource.
type Corpus struct {
	src      DocumentSource
	dict     *Dictionary
	metadata bool
	lazy     bool
	logger   *slog.Logger

	length      int
	lengthKnown bool
}

// Option configures a Corpus.
type Option func(*Corpus)

// WithMetadata makes Entries carry document metadata.
func WithMetadata(enabled bool) Option {
	return func(c *Corpus) { c.metadata = enabled }
}

// WithLazyDictionary skips the dictionary pass in New. The dictionary then
// grows during the first complete pass over Entries and is frozen after it.
func WithLazyDictionary(enabled bool) Option {
	return func(c *Corpus) { c.lazy = enabled }
}

// WithDictionary uses d instead of building one. Unless the corpus is lazy
// the dictionary is frozen as is.
func WithDictionary(d *Dictionary) Option {
	return func(c *Corpus) { c.dict = d }
}

// WithLogger sets the corpus logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Corpus) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a corpus over src. Without WithLazyDictionary or
// WithDictionary it makes one full pass to build the dictionary.
func New(ctx context.Context, src DocumentSource, opts ...Option) (*Corpus, error) {
	c := &Corpus{
		src:    src,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.lazy:
		if c.dict == nil {
			c.dict = NewDictionary()
		}
	case c.dict != nil:
		c.dict.Freeze()
	default:
		err := c.buildDictionary(ctx)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Corpus) buildDictionary(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "topicofchange.corpus.dictionary")
	defer span.End()

	c.dict = NewDictionary()

	n := 0

	for doc, err := range c.src.Documents(ctx) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "build dictionary")

			return fmt.Errorf("build dictionary: %w", err)
		}

		c.dict.AddDocument(doc.Terms)
		n++
	}

	c.dict.Freeze()
	c.setLength(n)

	span.SetAttributes(
		attribute.Int("corpus.documents", n),
		attribute.Int("corpus.terms", c.dict.Len()),
	)

	c.logger.InfoContext(ctx, "dictionary built",
		"documents", n, "terms", c.dict.Len(), "positions", c.dict.NumPos())

	return nil
}

// Dictionary returns the corpus dictionary.
func (c *Corpus) Dictionary() *Dictionary {
	return c.dict
}

// Len returns the document count of the last complete pass.
func (c *Corpus) Len() (int, error) {
	if !c.lengthKnown {
		return 0, ErrLengthUnknown
	}

	return c.length, nil
}

// Entries yields one bag of words per document. A source error ends the
// sequence; the length is only recorded when the pass runs to completion.
func (c *Corpus) Entries(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		ctx, span := otel.Tracer(tracerName).Start(ctx, "topicofchange.corpus.pass",
			trace.WithAttributes(attribute.Bool("corpus.lazy", c.lazy)))
		defer span.End()

		n := 0

		for doc, err := range c.src.Documents(ctx) {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "corpus pass")
				yield(Entry{}, err)

				return
			}

			n++

			e := Entry{Bag: c.dict.Doc2Bow(doc.Terms, c.lazy)}
			if c.metadata {
				e.Meta = doc.Metadata
			}

			if !yield(e, nil) {
				return
			}
		}

		if c.lazy {
			c.dict.Freeze()
		}

		c.setLength(n)
		span.SetAttributes(attribute.Int("corpus.documents", n))
	}
}

// Texts yields the source documents without touching the dictionary.
func (c *Corpus) Texts(ctx context.Context) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		n := 0

		for doc, err := range c.src.Documents(ctx) {
			if err != nil {
				yield(Document{}, err)

				return
			}

			n++

			if !yield(doc, nil) {
				return
			}
		}

		c.setLength(n)
	}
}

func (c *Corpus) setLength(n int) {
	c.length = n
	c.lengthKnown = true
}
