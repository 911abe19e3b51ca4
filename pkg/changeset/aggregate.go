package changeset

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/Sumatoshi-tech/topicofchange/pkg/textutil"
)

// Preprocessor turns raw text into terms. context identifies the input in
// decode errors.
type Preprocessor interface {
	Process(raw []byte, context ...string) ([]string, error)
}

// Aggregate folds a commit-contiguous patch stream into one Changeset per
// commit. A commit's document is emitted when a patch of another commit
// arrives, and the last one after the stream ends. Malformed patches and
// undecodable text are logged and skipped; any other error ends the sequence.
func Aggregate(
	ctx context.Context, patches iter.Seq2[Patch, error], pre Preprocessor, logger *slog.Logger,
) iter.Seq2[Changeset, error] {
	if logger == nil {
		logger = discardLogger()
	}

	return func(yield func(Changeset, error) bool) {
		var (
			current Changeset
			started bool
		)

		for patch, err := range patches {
			if err != nil {
				yield(Changeset{}, err)

				return
			}

			switch {
			case !started:
				started = true
				current = Changeset{Commit: patch.Commit, Terms: []string{}}
			case patch.Commit != current.Commit:
				if !yield(current, nil) {
					return
				}

				current = Changeset{Commit: patch.Commit, Terms: []string{}}
			}

			if patch.IsMarker() {
				continue
			}

			terms, err := patchTerms(patch, pre)

			var (
				formatErr *DiffFormatError
				decodeErr *textutil.DecodeError
			)

			switch {
			case err == nil:
				current.Terms = append(current.Terms, terms...)
			case errors.Is(err, ErrShortPatch):
				// No unified lines at all, e.g. a binary marker.
			case errors.As(err, &formatErr):
				logger.WarnContext(ctx, "skipping malformed patch",
					"commit", patch.Commit.String(), "path", patch.Path, "error", err)
			case errors.As(err, &decodeErr):
				logger.WarnContext(ctx, "skipping undecodable patch",
					"commit", patch.Commit.String(), "path", patch.Path, "error", err)
			default:
				yield(Changeset{}, err)

				return
			}
		}

		if started {
			yield(current, nil)
		}
	}
}

func patchTerms(patch Patch, pre Preprocessor) ([]string, error) {
	body, err := PatchBody(patch.Text)
	if err != nil {
		return nil, err
	}

	return pre.Process(body, patch.Commit.String(), patch.Parent.String(), patch.Path)
}
