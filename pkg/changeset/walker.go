package changeset

import (
	"context"
	"iter"
	"time"

	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib"
)

// Walker traverses commits reachable from a start commit and emits their
// patches against every parent.
type Walker struct {
	store     gitlib.Store
	extractor *Extractor
	opts      gitlib.WalkOptions
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithFirstParent follows only first parents. Merge commits are then diffed
// against their first parent only.
func WithFirstParent(enabled bool) WalkerOption {
	return func(w *Walker) { w.opts.FirstParent = enabled }
}

// WithLimit caps the number of commits walked (0 = unlimited).
func WithLimit(n int) WalkerOption {
	return func(w *Walker) { w.opts.Limit = max(n, 0) }
}

// WithSince stops the walk at the first commit authored before t.
func WithSince(t time.Time) WalkerOption {
	return func(w *Walker) { w.opts.Since = t }
}

// NewWalker creates a walker. A nil extractor gets the default one.
func NewWalker(store gitlib.Store, extractor *Extractor, opts ...WalkerOption) *Walker {
	if extractor == nil {
		extractor = NewExtractor(store)
	}

	w := &Walker{store: store, extractor: extractor}
	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Extractor returns the extractor patches come from.
func (w *Walker) Extractor() *Extractor {
	return w.extractor
}

// Commits yields the commits reachable from start, children before parents.
func (w *Walker) Commits(ctx context.Context, start gitlib.Hash) iter.Seq2[gitlib.CommitInfo, error] {
	return w.store.Walk(ctx, start, w.opts)
}

// Patches yields, for every commit, a marker patch followed by the commit's
// patches against the empty tree (root commits) or against each parent in
// parent order. All patches of one commit are contiguous.
func (w *Walker) Patches(ctx context.Context, start gitlib.Hash) iter.Seq2[Patch, error] {
	return func(yield func(Patch, error) bool) {
		for commit, err := range w.Commits(ctx, start) {
			if err != nil {
				yield(Patch{}, err)

				return
			}

			if !yield(Patch{Commit: commit.Hash}, nil) {
				return
			}

			for _, parent := range w.parents(commit) {
				for patch, patchErr := range w.extractor.Extract(ctx, commit, parent) {
					if !yield(patch, patchErr) || patchErr != nil {
						return
					}
				}
			}
		}
	}
}

func (w *Walker) parents(commit gitlib.CommitInfo) []gitlib.Hash {
	switch {
	case commit.IsRoot():
		return []gitlib.Hash{gitlib.ZeroHash()}
	case w.opts.FirstParent:
		return commit.Parents[:1]
	default:
		return commit.Parents
	}
}
