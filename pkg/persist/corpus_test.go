package persist

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"iter"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/topicofchange/pkg/corpus"
)

// staticSource yields fixed documents, optionally failing after them.
type staticSource struct {
	docs []corpus.Document
	err  error
}

func (s staticSource) Documents(context.Context) iter.Seq2[corpus.Document, error] {
	return func(yield func(corpus.Document, error) bool) {
		for _, d := range s.docs {
			if !yield(d, nil) {
				return
			}
		}

		if s.err != nil {
			yield(corpus.Document{}, s.err)
		}
	}
}

func sampleDocs() []corpus.Document {
	return []corpus.Document{
		{Terms: []string{"read", "file", "read"}, Metadata: corpus.Metadata{ID: "src/my file.go", Lang: "en"}},
		{Terms: []string{}, Metadata: corpus.Metadata{ID: "empty", Lang: "en"}},
		{Terms: []string{"parse", "file"}, Metadata: corpus.Metadata{ID: "abc123", Lang: "en"}},
	}
}

func newCorpus(t *testing.T, src corpus.DocumentSource) *corpus.Corpus {
	t.Helper()

	c, err := corpus.New(context.Background(), src, corpus.WithMetadata(true))
	require.NoError(t, err)

	return c
}

func readAll(t *testing.T, src corpus.DocumentSource) []corpus.Document {
	t.Helper()

	var out []corpus.Document

	for d, err := range src.Documents(context.Background()) {
		require.NoError(t, err)

		out = append(out, d)
	}

	return out
}

func TestWriteMallet(t *testing.T) {
	t.Parallel()

	c := newCorpus(t, staticSource{docs: sampleDocs()})

	var buf bytes.Buffer

	n, err := WriteMallet(&buf, c.Entries(context.Background()), c.Dictionary())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "src/my%20file.go en file read read\nempty en\nabc123 en file parse\n", buf.String())

	docs := readAll(t, staticSourceFromMallet(buf.String()))
	require.Len(t, docs, 3)
	assert.Equal(t, "src/my file.go", docs[0].Metadata.ID)
	assert.Equal(t, []string{"file", "read", "read"}, docs[0].Terms)
	assert.Empty(t, docs[1].Terms)
}

func TestWriteMallet_WithoutMetadata(t *testing.T) {
	t.Parallel()

	c, err := corpus.New(context.Background(), staticSource{docs: sampleDocs()[:1]})
	require.NoError(t, err)

	var buf bytes.Buffer

	_, err = WriteMallet(&buf, c.Entries(context.Background()), c.Dictionary())
	require.NoError(t, err)
	assert.Equal(t, "0 __unknown__ file read read\n", buf.String())
}

func TestReadMallet_Corrupt(t *testing.T) {
	t.Parallel()

	var gotErr error

	for _, err := range ReadMallet(strings.NewReader("ok en word\nlonely\n")) {
		gotErr = err
	}

	require.ErrorIs(t, gotErr, ErrCorruptCorpus)
	assert.Contains(t, gotErr.Error(), "line 2")
}

func TestDictionaryFormat(t *testing.T) {
	t.Parallel()

	c := newCorpus(t, staticSource{docs: sampleDocs()})

	var buf bytes.Buffer

	require.NoError(t, WriteDictionary(&buf, c.Dictionary()))
	assert.Equal(t, "3\n0\tfile\t2\n1\tread\t1\n2\tparse\t1\n", buf.String())

	dict, err := ReadDictionary(&buf)
	require.NoError(t, err)
	assert.Equal(t, c.Dictionary().Entries(), dict.Entries())
	assert.Equal(t, 3, dict.NumDocs())

	for _, bad := range []string{"", "x\n", "1\n0\tonly-two\n", "1\nzero\tterm\t1\n", "1\n0\tterm\tmany\n", "1\n1\tterm\t1\n"} {
		_, err = ReadDictionary(strings.NewReader(bad))
		require.ErrorIs(t, err, ErrCorruptCorpus, "%q", bad)
	}
}

func TestWriteCorpus_Load(t *testing.T) {
	t.Parallel()

	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "lz4"}[compress], func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			c := newCorpus(t, staticSource{docs: sampleDocs()})
			created := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)

			m, err := WriteCorpus(context.Background(), dir, "proj_files", c, WriteOptions{
				Compress: compress,
				Manifest: Manifest{Kind: KindFiles, Ref: "HEAD", Head: "abc", CreatedAt: created},
			})
			require.NoError(t, err)

			assert.Equal(t, Manifest{
				Name: "proj_files", Kind: KindFiles, Ref: "HEAD", Head: "abc",
				Documents: 3, Terms: 3, Compressed: compress, CreatedAt: created,
			}, m)

			paths := CorpusPaths(dir, "proj_files", compress)
			for _, p := range []string{paths.Mallet, paths.Dictionary, paths.Manifest} {
				_, statErr := os.Stat(p)
				require.NoError(t, statErr, p)
			}

			readBack, err := ReadManifest(dir, "proj_files")
			require.NoError(t, err)
			assert.Equal(t, m, readBack)

			loaded, err := Load(dir, "proj_files")
			require.NoError(t, err)
			assert.Equal(t, c.Dictionary().Terms(), loaded.Dictionary.Terms())

			reloaded, err := loaded.Corpus(context.Background())
			require.NoError(t, err)

			var original, again []corpus.Entry

			for e, iterErr := range c.Entries(context.Background()) {
				require.NoError(t, iterErr)

				original = append(original, e)
			}

			for e, iterErr := range reloaded.Entries(context.Background()) {
				require.NoError(t, iterErr)

				again = append(again, e)
			}

			assert.Equal(t, original, again)
		})
	}
}

func TestWriteCorpus_FailedPassLeavesNoManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	boom := errors.New("unreadable blob")

	good := newCorpus(t, staticSource{docs: sampleDocs()})
	_, err := WriteCorpus(context.Background(), dir, "p", good, WriteOptions{})
	require.NoError(t, err)

	lazy, err := corpus.New(context.Background(), staticSource{docs: sampleDocs(), err: boom}, corpus.WithLazyDictionary(true))
	require.NoError(t, err)

	_, err = WriteCorpus(context.Background(), dir, "p", lazy, WriteOptions{})
	require.ErrorIs(t, err, boom)

	_, err = ReadManifest(dir, "p")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadOrBuild(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	builds := 0

	build := func(ctx context.Context) (*corpus.Corpus, error) {
		builds++

		return corpus.New(ctx, staticSource{docs: sampleDocs()}, corpus.WithMetadata(true))
	}

	opts := WriteOptions{Manifest: Manifest{Kind: KindChangesets, Head: "h1"}}

	first, err := LoadOrBuild(ctx, dir, "p", build, opts)
	require.NoError(t, err)
	assert.False(t, first.Reused)
	assert.Equal(t, 1, builds)
	assert.Equal(t, 3, first.Manifest.Documents)

	second, err := LoadOrBuild(ctx, dir, "p", build, opts)
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, 1, builds)
	assert.Len(t, readAll(t, second.Source), 3)

	opts.Manifest.Head = "h2"
	stale, err := LoadOrBuild(ctx, dir, "p", build, opts)
	require.NoError(t, err)
	assert.False(t, stale.Reused)
	assert.Equal(t, 2, builds)

	paths := CorpusPaths(dir, "p", false)
	require.NoError(t, os.WriteFile(paths.Dictionary, []byte("garbage"), 0o644))

	rebuilt, err := LoadOrBuild(ctx, dir, "p", build, opts)
	require.NoError(t, err)
	assert.False(t, rebuilt.Reused)
	assert.Equal(t, 3, builds)

	require.NoError(t, os.WriteFile(paths.Dictionary, []byte("1\n0\tfile\t1\n"), 0o644))

	_, err = Load(dir, "p")
	require.ErrorIs(t, err, ErrCorruptCorpus)
}

func TestLoadOrBuild_OptionsChanged(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	builds := 0

	build := func(ctx context.Context) (*corpus.Corpus, error) {
		builds++

		return corpus.New(ctx, staticSource{docs: sampleDocs()}, corpus.WithMetadata(true))
	}

	limited, err := OptionsDigest(map[string]int{"limit": 10})
	require.NoError(t, err)

	unlimited, err := OptionsDigest(map[string]int{"limit": 0})
	require.NoError(t, err)
	require.NotEqual(t, limited, unlimited)

	again, err := OptionsDigest(map[string]int{"limit": 10})
	require.NoError(t, err)
	assert.Equal(t, limited, again)

	opts := WriteOptions{Manifest: Manifest{Kind: KindChangesets, Head: "h1", Options: limited}}

	first, err := LoadOrBuild(ctx, dir, "p", build, opts)
	require.NoError(t, err)
	assert.False(t, first.Reused)
	assert.Equal(t, limited, first.Manifest.Options)

	same, err := LoadOrBuild(ctx, dir, "p", build, opts)
	require.NoError(t, err)
	assert.True(t, same.Reused)
	assert.Equal(t, 1, builds)

	opts.Manifest.Options = unlimited
	changed, err := LoadOrBuild(ctx, dir, "p", build, opts)
	require.NoError(t, err)
	assert.False(t, changed.Reused)
	assert.Equal(t, 2, builds)

	m, err := ReadManifest(dir, "p")
	require.NoError(t, err)
	assert.Equal(t, unlimited, m.Options)
}

func staticSourceFromMallet(text string) corpus.DocumentSource {
	var docs []corpus.Document

	for d, err := range ReadMallet(strings.NewReader(text)) {
		if err != nil {
			return staticSource{err: err}
		}

		docs = append(docs, d)
	}

	return staticSource{docs: docs}
}
