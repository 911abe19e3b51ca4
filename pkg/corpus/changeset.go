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

// ChangesetSource yields one document per commit reachable from a
// reference, built from the commit's diffs against all of its parents.
type ChangesetSource struct {
	store    gitlib.Store
	ref      string
	pipeline *tokenize.Pipeline
	cfg      sourceConfig
	stats    SourceStats
}

var _ DocumentSource = (*ChangesetSource)(nil)

// NewChangesetSource creates a changeset source.
func NewChangesetSource(store gitlib.Store, ref string, pipeline *tokenize.Pipeline, opts ...SourceOption) *ChangesetSource {
	return &ChangesetSource{store: store, ref: ref, pipeline: pipeline, cfg: newSourceConfig(opts)}
}

// Stats returns the counters of the most recent pass.
func (s *ChangesetSource) Stats() SourceStats {
	return s.stats
}

// Documents walks the history from the reference and yields commit
// documents in walk order.
func (s *ChangesetSource) Documents(ctx context.Context) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		s.stats = SourceStats{}

		start, err := s.store.ResolveRef(ctx, s.ref)
		if err != nil {
			yield(Document{}, err)

			return
		}

		extOpts := []changeset.ExtractorOption{changeset.WithExtractorLogger(s.cfg.logger)}
		if s.cfg.filter != nil {
			extOpts = append(extOpts, changeset.WithPathFilter(s.cfg.filter))
		}

		ext := changeset.NewExtractor(s.store, append(extOpts, s.cfg.extractorOpts...)...)
		walker := changeset.NewWalker(s.store, ext, s.cfg.walkerOpts...)
		pre := &countingPreprocessor{pipeline: s.pipeline}

		defer func() {
			es := ext.Stats()
			s.stats.Patches = es.Patches
			s.stats.Binary = es.Binary
			s.stats.Filtered = es.Filtered
			s.stats.Undecodable = pre.undecodable
		}()

		for cs, aggErr := range changeset.Aggregate(ctx, walker.Patches(ctx, start), pre, s.cfg.logger) {
			if aggErr != nil {
				yield(Document{}, aggErr)

				return
			}

			s.stats.Documents++

			doc := Document{
				Terms:    cs.Terms,
				Metadata: Metadata{ID: cs.Commit.String(), Lang: s.cfg.lang},
			}

			if !yield(doc, nil) {
				return
			}
		}
	}
}

type countingPreprocessor struct {
	pipeline    *tokenize.Pipeline
	undecodable int
}

func (p *countingPreprocessor) Process(raw []byte, info ...string) ([]string, error) {
	terms, err := p.pipeline.Process(raw, info...)

	var decodeErr *textutil.DecodeError
	if errors.As(err, &decodeErr) {
		p.undecodable++
	}

	return terms, err
}
