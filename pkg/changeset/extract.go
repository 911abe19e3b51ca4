package changeset

import (
	"context"
	"iter"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib"
	"github.com/Sumatoshi-tech/topicofchange/pkg/textutil"
)

// TracerName names the tracer for per-commit diff spans.
const TracerName = "topicofchange.changeset"

// ExtractStats counts what the extractor did with the changes it saw.
type ExtractStats struct {
	Patches  int
	Binary   int
	Filtered int
}

// Extractor turns the tree diff between a commit and one parent into patches.
type Extractor struct {
	store    gitlib.Store
	renderer Renderer
	filter   *PathFilter
	logger   *slog.Logger
	stats    ExtractStats
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithRenderer replaces the default MyersRenderer.
func WithRenderer(r Renderer) ExtractorOption {
	return func(e *Extractor) { e.renderer = r }
}

// WithPathFilter restricts which paths are rendered.
func WithPathFilter(f *PathFilter) ExtractorOption {
	return func(e *Extractor) { e.filter = f }
}

// WithExtractorLogger sets the logger for skip messages.
func WithExtractorLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor creates an extractor reading from store.
func NewExtractor(store gitlib.Store, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		store:    store,
		renderer: NewMyersRenderer(DefaultContextLines),
		logger:   discardLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Stats returns the running counters.
func (e *Extractor) Stats() ExtractStats {
	return e.stats
}

// Extract yields one patch per text change between parent and commit. A zero
// parent diffs against the empty tree. Binary and filtered paths are skipped;
// repository read failures end the sequence with an error.
func (e *Extractor) Extract(ctx context.Context, commit gitlib.CommitInfo, parent gitlib.Hash) iter.Seq2[Patch, error] {
	return func(yield func(Patch, error) bool) {
		oldTree := gitlib.ZeroHash()

		if !parent.IsZero() {
			parentInfo, err := e.store.LookupCommit(ctx, parent)
			if err != nil {
				yield(Patch{}, err)

				return
			}

			oldTree = parentInfo.Tree
		}

		changes, err := e.diffTrees(ctx, commit.Hash, oldTree, commit.Tree)
		if err != nil {
			yield(Patch{}, err)

			return
		}

		for _, change := range changes {
			if ctx.Err() != nil {
				yield(Patch{}, ctx.Err())

				return
			}

			patch, ok, extractErr := e.extractChange(ctx, commit.Hash, parent, change)
			if extractErr != nil {
				yield(Patch{}, extractErr)

				return
			}

			if !ok {
				continue
			}

			if !yield(patch, nil) {
				return
			}
		}
	}
}

func (e *Extractor) diffTrees(ctx context.Context, commit, oldTree, newTree gitlib.Hash) (gitlib.Changes, error) {
	_, span := otel.Tracer(TracerName).Start(ctx, "topicofchange.changeset.diff",
		trace.WithAttributes(attribute.String("changeset.commit", commit.String())))
	defer span.End()

	changes, err := e.store.DiffTrees(ctx, oldTree, newTree)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "diff trees")

		return nil, err
	}

	span.SetAttributes(attribute.Int("changeset.changes", len(changes)))

	return changes, nil
}

func (e *Extractor) extractChange(
	ctx context.Context, commit, parent gitlib.Hash, change *gitlib.Change,
) (Patch, bool, error) {
	name := change.Path()

	if !e.filter.AllowPath(name) {
		e.stats.Filtered++
		e.logger.DebugContext(ctx, "skipping filtered path", "commit", commit.String(), "path", name)

		return Patch{}, false, nil
	}

	oldData, err := e.readSide(ctx, change.From.Hash)
	if err != nil {
		return Patch{}, false, err
	}

	newData, err := e.readSide(ctx, change.To.Hash)
	if err != nil {
		return Patch{}, false, err
	}

	if textutil.IsBinary(oldData) || textutil.IsBinary(newData) {
		e.stats.Binary++
		e.logger.DebugContext(ctx, "skipping binary change", "commit", commit.String(), "path", name)

		return Patch{}, false, nil
	}

	if e.filter.FiltersLanguage() {
		content := newData
		if change.Action == gitlib.Delete {
			content = oldData
		}

		if !e.filter.AllowLanguage(DetectLanguage(name, content)) {
			e.stats.Filtered++

			return Patch{}, false, nil
		}
	}

	text, err := e.renderer.Render(ctx, change, oldData, newData)
	if err != nil {
		return Patch{}, false, err
	}

	e.stats.Patches++

	return Patch{Commit: commit, Parent: parent, Path: name, Action: change.Action, Text: text}, true, nil
}

func (e *Extractor) readSide(ctx context.Context, hash gitlib.Hash) ([]byte, error) {
	if hash.IsZero() {
		return nil, nil
	}

	return e.store.ReadBlob(ctx, hash)
}
