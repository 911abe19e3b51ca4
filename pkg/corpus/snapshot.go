package corpus

import (
	"context"
	"errors"
	"iter"

	"github.com/Sumatoshi-tech/topicofchange/pkg/changeset"
	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib"
	"github.com/Sumatoshi-tech/topicofchange/pkg/textutil"
	"github.com/Sumatoshi-tech/topicofchange/pkg/tokenize"
)

// SnapshotSource yields one document per file in the tree at a reference.
type SnapshotSource struct {
	store    gitlib.Store
	ref      string
	pipeline *tokenize.Pipeline
	cfg      sourceConfig
	stats    SourceStats
}

var _ DocumentSource = (*SnapshotSource)(nil)

// NewSnapshotSource creates a snapshot source. Walker and extractor options
// are ignored.
func NewSnapshotSource(store gitlib.Store, ref string, pipeline *tokenize.Pipeline, opts ...SourceOption) *SnapshotSource {
	return &SnapshotSource{store: store, ref: ref, pipeline: pipeline, cfg: newSourceConfig(opts)}
}

// Stats returns the counters of the most recent pass.
func (s *SnapshotSource) Stats() SourceStats {
	return s.stats
}

// Documents lists the tree at the reference and yields the terms of every
// text file in path order. Binary, filtered and undecodable files are skipped.
func (s *SnapshotSource) Documents(ctx context.Context) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		s.stats = SourceStats{}

		files, err := s.files(ctx)
		if err != nil {
			yield(Document{}, err)

			return
		}

		for _, f := range files {
			if ctx.Err() != nil {
				yield(Document{}, ctx.Err())

				return
			}

			doc, ok, docErr := s.document(ctx, f)
			if docErr != nil {
				yield(Document{}, docErr)

				return
			}

			if !ok {
				continue
			}

			s.stats.Documents++

			if !yield(doc, nil) {
				return
			}
		}
	}
}

func (s *SnapshotSource) files(ctx context.Context) ([]gitlib.TreeFile, error) {
	hash, err := s.store.ResolveRef(ctx, s.ref)
	if err != nil {
		return nil, err
	}

	commit, err := s.store.LookupCommit(ctx, hash)
	if err != nil {
		return nil, err
	}

	return s.store.ListFiles(ctx, commit.Tree)
}

func (s *SnapshotSource) document(ctx context.Context, f gitlib.TreeFile) (Document, bool, error) {
	if !s.cfg.filter.AllowPath(f.Path) {
		s.stats.Filtered++

		return Document{}, false, nil
	}

	data, err := s.store.ReadBlob(ctx, f.Hash)
	if err != nil {
		return Document{}, false, err
	}

	if textutil.IsBinary(data) {
		s.stats.Binary++
		s.cfg.logger.DebugContext(ctx, "skipping binary file", "path", f.Path)

		return Document{}, false, nil
	}

	language := changeset.DetectLanguage(f.Path, data)
	if s.cfg.filter.FiltersLanguage() && !s.cfg.filter.AllowLanguage(language) {
		s.stats.Filtered++

		return Document{}, false, nil
	}

	terms, err := s.pipeline.Process(data, f.Path, s.ref)
	if err != nil {
		var decodeErr *textutil.DecodeError
		if errors.As(err, &decodeErr) {
			s.stats.Undecodable++
			s.cfg.logger.WarnContext(ctx, "skipping undecodable file", "path", f.Path, "error", err)

			return Document{}, false, nil
		}

		return Document{}, false, err
	}

	return Document{
		Terms:    terms,
		Metadata: Metadata{ID: f.Path, Lang: s.cfg.lang, Language: language},
	}, true, nil
}
