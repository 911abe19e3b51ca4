package changeset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib"
)

func files(kv ...string) map[string][]byte {
	m := make(map[string][]byte, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = []byte(kv[i+1])
	}

	return m
}

func collectPatches(t *testing.T, w *Walker, start gitlib.Hash) []Patch {
	t.Helper()

	var out []Patch

	for p, err := range w.Patches(context.Background(), start) {
		require.NoError(t, err)

		out = append(out, p)
	}

	return out
}

func TestWalker_RootAndChild(t *testing.T) {
	t.Parallel()

	store := gitlib.NewMemStore()
	root := store.Commit("root", files("a.txt", "hello\n"))
	child := store.Commit("child", files("a.txt", "hello\nworld\n", "b.txt", "new\n"), root)

	patches := collectPatches(t, NewWalker(store, nil), child)

	require.Len(t, patches, 5)
	assert.True(t, patches[0].IsMarker())
	assert.Equal(t, child, patches[0].Commit)
	assert.Equal(t, "a.txt", patches[1].Path)
	assert.Equal(t, root, patches[1].Parent)
	assert.Equal(t, "b.txt", patches[2].Path)
	assert.Equal(t, gitlib.Insert, patches[2].Action)
	assert.True(t, patches[3].IsMarker())
	assert.Equal(t, root, patches[3].Commit)
	assert.True(t, patches[4].Parent.IsZero())
	assert.Contains(t, string(patches[4].Text), "--- /dev/null\n+++ b/a.txt\n")
}

func TestWalker_MergeDiffsEveryParent(t *testing.T) {
	t.Parallel()

	store := gitlib.NewMemStore()
	base := store.Commit("base", files("f", "base\n"))
	left := store.Commit("left", files("f", "base\n", "l", "left\n"), base)
	right := store.Commit("right", files("f", "right\n"), base)
	merge := store.Commit("merge", files("f", "right\n", "l", "left\n"), left, right)

	w := NewWalker(store, nil)

	var mergePatches []Patch

	for _, p := range collectPatches(t, w, merge) {
		if p.Commit == merge && !p.IsMarker() {
			mergePatches = append(mergePatches, p)
		}
	}

	require.Len(t, mergePatches, 2)
	assert.Equal(t, left, mergePatches[0].Parent)
	assert.Equal(t, "f", mergePatches[0].Path)
	assert.Equal(t, right, mergePatches[1].Parent)
	assert.Equal(t, "l", mergePatches[1].Path)

	firstParent := NewWalker(store, nil, WithFirstParent(true))

	var commits []gitlib.Hash

	for c, err := range firstParent.Commits(context.Background(), merge) {
		require.NoError(t, err)

		commits = append(commits, c.Hash)
	}

	assert.Equal(t, []gitlib.Hash{merge, left, base}, commits)

	for _, p := range collectPatches(t, firstParent, merge) {
		if p.Commit == merge && !p.IsMarker() {
			assert.Equal(t, left, p.Parent)
		}
	}
}

func TestWalker_BoundaryCountEqualsCommits(t *testing.T) {
	t.Parallel()

	store := gitlib.NewMemStore()
	base := store.Commit("base", files("f", "one\n"))
	empty := store.Commit("no-op", files("f", "one\n"), base)
	left := store.Commit("left", files("f", "one\n", "x", "x\n"), empty)
	right := store.Commit("right", files("f", "two\n"), empty)
	merge := store.Commit("merge", files("f", "two\n", "x", "x\n"), left, right)

	w := NewWalker(store, nil)
	docs := collectChangesets(t, Aggregate(context.Background(), w.Patches(context.Background(), merge), wordsPreprocessor{}, nil))

	require.Len(t, docs, 5)

	seen := map[gitlib.Hash]bool{}
	for _, d := range docs {
		assert.False(t, seen[d.Commit], "commit emitted twice")
		seen[d.Commit] = true
	}

	for _, h := range []gitlib.Hash{base, empty, left, right, merge} {
		assert.True(t, seen[h])
	}
}

func TestWalker_Limit(t *testing.T) {
	t.Parallel()

	store := gitlib.NewMemStore()
	first := store.Commit("1", files("f", "1\n"))
	second := store.Commit("2", files("f", "2\n"), first)

	markers := 0

	for _, p := range collectPatches(t, NewWalker(store, nil, WithLimit(1)), second) {
		if p.IsMarker() {
			markers++
		}
	}

	assert.Equal(t, 1, markers)
}

func TestExtractor_BinarySkipKeepsOtherPaths(t *testing.T) {
	t.Parallel()

	store := gitlib.NewMemStore()
	head := store.Commit("mixed", files("image.png", "\x89PNG\x00\x01", "code.go", "package main\n"))

	ext := NewExtractor(store)
	w := NewWalker(store, ext)
	docs := collectChangesets(t, Aggregate(context.Background(), w.Patches(context.Background(), head), wordsPreprocessor{}, nil))

	require.Len(t, docs, 1)
	assert.Equal(t, []string{"package", "main"}, docs[0].Terms)
	assert.Equal(t, ExtractStats{Patches: 1, Binary: 1}, ext.Stats())
}

func TestExtractor_PathFilters(t *testing.T) {
	t.Parallel()

	store := gitlib.NewMemStore()
	head := store.Commit("mixed", files(
		"vendor/lib/x.go", "package lib\n",
		"main.go", "package main\n",
		"README.md", "# readme\n",
	))

	info, err := store.LookupCommit(context.Background(), head)
	require.NoError(t, err)

	paths := func(ext *Extractor) []string {
		var out []string

		for p, extractErr := range ext.Extract(context.Background(), info, gitlib.ZeroHash()) {
			require.NoError(t, extractErr)

			out = append(out, p.Path)
		}

		return out
	}

	all := NewExtractor(store)
	assert.Equal(t, []string{"README.md", "main.go", "vendor/lib/x.go"}, paths(all))

	noVendor := NewExtractor(store, WithPathFilter(NewPathFilter(true, DefaultSkipPrefixes, nil)))
	assert.Equal(t, []string{"README.md", "main.go"}, paths(noVendor))

	goOnly := NewExtractor(store, WithPathFilter(NewPathFilter(true, DefaultSkipPrefixes, []string{"Go"})))
	assert.Equal(t, []string{"main.go"}, paths(goOnly))
	assert.Equal(t, 2, goOnly.Stats().Filtered)
}

func TestExtractor_MissingBlobIsFatal(t *testing.T) {
	t.Parallel()

	store := gitlib.NewMemStore()
	head := store.Commit("one", files("f", "content\n"))
	store.DeleteBlob(gitlib.BlobHash([]byte("content\n")))

	var gotErr error

	for _, err := range NewWalker(store, nil).Patches(context.Background(), head) {
		if err != nil {
			gotErr = err
		}
	}

	require.ErrorIs(t, gotErr, gitlib.ErrRepositoryAccess)
}

func TestPathFilter(t *testing.T) {
	t.Parallel()

	var nilFilter *PathFilter
	assert.True(t, nilFilter.AllowPath("vendor/x"))
	assert.True(t, nilFilter.AllowLanguage(""))

	f := NewPathFilter(true, []string{"gen/"}, []string{"all"})
	assert.False(t, f.AllowPath("gen/a.go"))
	assert.False(t, f.AllowPath("node_modules/x/index.js"))
	assert.True(t, f.AllowPath("src/a.go"))
	assert.False(t, f.FiltersLanguage())

	langs := NewPathFilter(false, nil, []string{" python ", "Java"})
	assert.True(t, langs.AllowPath("vendor/x"))
	assert.True(t, langs.AllowLanguage("Python"))
	assert.False(t, langs.AllowLanguage("Go"))
	assert.False(t, langs.AllowLanguage(""))

	assert.Equal(t, "Go", DetectLanguage("cmd/main.go", nil))
	assert.Equal(t, "Python", DetectLanguage("x.py", []byte("print(1)\n")))
}
