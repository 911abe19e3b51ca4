package changeset

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib"
	"github.com/Sumatoshi-tech/topicofchange/pkg/textutil"
)

// wordsPreprocessor splits on whitespace and fails for inputs containing
// a configured marker.
type wordsPreprocessor struct {
	failOn string
	err    error
}

func (p wordsPreprocessor) Process(raw []byte, _ ...string) ([]string, error) {
	if p.failOn != "" && strings.Contains(string(raw), p.failOn) {
		return nil, p.err
	}

	return strings.Fields(string(raw)), nil
}

func patchSeq(patches ...Patch) iter.Seq2[Patch, error] {
	return func(yield func(Patch, error) bool) {
		for _, p := range patches {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func unified(body ...string) []byte {
	return []byte("--- a/f\n+++ b/f\n@@ -1 +1 @@\n" + strings.Join(body, "\n") + "\n")
}

func collectChangesets(t *testing.T, seq iter.Seq2[Changeset, error]) []Changeset {
	t.Helper()

	var out []Changeset

	for cs, err := range seq {
		require.NoError(t, err)

		out = append(out, cs)
	}

	return out
}

var (
	hashA = gitlib.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	hashB = gitlib.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	hashC = gitlib.NewHash("cccccccccccccccccccccccccccccccccccccccc")
)

func TestPatchBody(t *testing.T) {
	t.Parallel()

	body, err := PatchBody([]byte("--- a/x\n+++ b/x\n@@ -1,2 +1,2 @@\n keep\n-old\n+new\n\\ No newline at end of file\n"))
	require.NoError(t, err)
	assert.Equal(t, "keep old new", string(body))

	_, err = PatchBody([]byte("Binary files a/x and b/x differ\n"))
	require.ErrorIs(t, err, ErrShortPatch)

	_, err = PatchBody([]byte("+++ b/x\n--- a/x\n+body\n"))

	var formatErr *DiffFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, 1, formatErr.Line)

	require.NoError(t, ValidatePatch(unified("+x")))
	require.Error(t, ValidatePatch([]byte("--- a/x\n-oops\n")))
}

func TestAggregate_GroupsByCommit(t *testing.T) {
	t.Parallel()

	patches := patchSeq(
		Patch{Commit: hashA},
		Patch{Commit: hashA, Path: "f", Text: unified("+one", " two")},
		Patch{Commit: hashA, Parent: hashB, Path: "g", Text: unified("-three")},
		Patch{Commit: hashB},
		Patch{Commit: hashB, Path: "f", Text: unified("+four")},
		Patch{Commit: hashC},
	)

	got := collectChangesets(t, Aggregate(context.Background(), patches, wordsPreprocessor{}, nil))

	require.Len(t, got, 3)
	assert.Equal(t, Changeset{Commit: hashA, Terms: []string{"one", "two", "three"}}, got[0])
	assert.Equal(t, Changeset{Commit: hashB, Terms: []string{"four"}}, got[1])
	assert.Equal(t, Changeset{Commit: hashC, Terms: []string{}}, got[2])
}

func TestAggregate_SingleCommitFlushes(t *testing.T) {
	t.Parallel()

	got := collectChangesets(t, Aggregate(context.Background(),
		patchSeq(Patch{Commit: hashA, Path: "f", Text: unified("+only")}), wordsPreprocessor{}, nil))

	require.Len(t, got, 1)
	assert.Equal(t, []string{"only"}, got[0].Terms)
}

func TestAggregate_EmptyStream(t *testing.T) {
	t.Parallel()

	assert.Empty(t, collectChangesets(t, Aggregate(context.Background(), patchSeq(), wordsPreprocessor{}, nil)))
}

func TestAggregate_SkipsBadPatches(t *testing.T) {
	t.Parallel()

	decodeErr := &textutil.DecodeError{Context: []string{"x"}, Errs: []error{errors.New("bad")}}
	pre := wordsPreprocessor{failOn: "undecodable", err: decodeErr}

	patches := patchSeq(
		Patch{Commit: hashA, Path: "short", Text: []byte("--- a/f\n")},
		Patch{Commit: hashA, Path: "bad", Text: []byte("+++ b/f\n--- a/f\n+x\n")},
		Patch{Commit: hashA, Path: "enc", Text: unified("+undecodable")},
		Patch{Commit: hashA, Path: "ok", Text: unified("+fine")},
	)

	got := collectChangesets(t, Aggregate(context.Background(), patches, pre, nil))

	require.Len(t, got, 1)
	assert.Equal(t, []string{"fine"}, got[0].Terms)
}

func TestAggregate_AbortsOnOtherErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	pre := wordsPreprocessor{failOn: "explode", err: boom}

	patches := patchSeq(
		Patch{Commit: hashA, Path: "f", Text: unified("+ok")},
		Patch{Commit: hashB, Path: "f", Text: unified("+explode")},
	)

	var (
		docs    int
		lastErr error
	)

	for _, err := range Aggregate(context.Background(), patches, pre, nil) {
		if err != nil {
			lastErr = err

			continue
		}

		docs++
	}

	assert.Equal(t, 1, docs)
	require.ErrorIs(t, lastErr, boom)
}

func TestAggregate_PropagatesSourceError(t *testing.T) {
	t.Parallel()

	accessErr := &gitlib.AccessError{Op: "read blob", Object: "x", Err: gitlib.ErrObjectNotFound}
	seq := func(yield func(Patch, error) bool) {
		if !yield(Patch{Commit: hashA}, nil) {
			return
		}

		yield(Patch{}, accessErr)
	}

	var gotErr error

	for _, err := range Aggregate(context.Background(), seq, wordsPreprocessor{}, nil) {
		if err != nil {
			gotErr = err
		}
	}

	require.ErrorIs(t, gotErr, gitlib.ErrRepositoryAccess)
}

func TestAggregate_EarlyStop(t *testing.T) {
	t.Parallel()

	patches := patchSeq(Patch{Commit: hashA}, Patch{Commit: hashB}, Patch{Commit: hashC})

	count := 0

	for _, err := range Aggregate(context.Background(), patches, wordsPreprocessor{}, nil) {
		require.NoError(t, err)

		count++

		break
	}

	assert.Equal(t, 1, count)
}
