// Package corpus turns repository contents into re-iterable bag-of-words
// corpora for topic modeling.
package corpus

import (
	"context"
	"io"
	"iter"
	"log/slog"

	"github.com/Sumatoshi-tech/topicofchange/pkg/changeset"
)

// DefaultLang is the natural-language tag attached to documents.
const DefaultLang = "en"

// Metadata identifies a document.
type Metadata struct {
	// ID is the file path or the commit hash.
	ID string
	// Lang is the natural-language tag.
	Lang string
	// Language is the detected programming language, snapshot documents only.
	Language string
}

// Document is the term sequence of one file or commit.
type Document struct {
	Terms    []string
	Metadata Metadata
}

// DocumentSource produces documents. Every call to Documents starts a new
// pass over the repository.
type DocumentSource interface {
	Documents(ctx context.Context) iter.Seq2[Document, error]
}

// SourceStats counts what one pass of a source skipped and produced.
type SourceStats struct {
	Documents   int
	Patches     int
	Binary      int
	Filtered    int
	Undecodable int
}

type sourceConfig struct {
	lang          string
	logger        *slog.Logger
	filter        *changeset.PathFilter
	walkerOpts    []changeset.WalkerOption
	extractorOpts []changeset.ExtractorOption
}

// SourceOption configures a SnapshotSource or ChangesetSource.
type SourceOption func(*sourceConfig)

// WithLang sets the natural-language tag of emitted documents.
func WithLang(lang string) SourceOption {
	return func(c *sourceConfig) {
		if lang != "" {
			c.lang = lang
		}
	}
}

// WithSourceLogger sets the logger used for skipped inputs.
func WithSourceLogger(l *slog.Logger) SourceOption {
	return func(c *sourceConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPathFilter restricts the files or changes considered.
func WithPathFilter(f *changeset.PathFilter) SourceOption {
	return func(c *sourceConfig) { c.filter = f }
}

// WithWalkerOptions configures the commit walk of a ChangesetSource.
func WithWalkerOptions(opts ...changeset.WalkerOption) SourceOption {
	return func(c *sourceConfig) { c.walkerOpts = append(c.walkerOpts, opts...) }
}

// WithExtractorOptions configures diff extraction of a ChangesetSource.
func WithExtractorOptions(opts ...changeset.ExtractorOption) SourceOption {
	return func(c *sourceConfig) { c.extractorOpts = append(c.extractorOpts, opts...) }
}

func newSourceConfig(opts []SourceOption) sourceConfig {
	cfg := sourceConfig{
		lang:   DefaultLang,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}
