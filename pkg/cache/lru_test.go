package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib"
)

func hashOf(s string) gitlib.Hash {
	return gitlib.BlobHash([]byte(s))
}

func TestLRUBlobCache_GetPut(t *testing.T) {
	t.Parallel()

	c := NewLRUBlobCache(1024)

	_, ok := c.Get(hashOf("a"))
	assert.False(t, ok)

	data := []byte("a")
	c.Put(hashOf("a"), data)
	data[0] = 'z'

	got, ok := c.Get(hashOf("a"))
	require.True(t, ok)
	assert.Equal(t, []byte("a"), got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.CurrentSize)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestLRUBlobCache_Evicts(t *testing.T) {
	t.Parallel()

	c := NewLRUBlobCache(10)
	c.Put(hashOf("one"), []byte("12345"))
	c.Put(hashOf("two"), []byte("67890"))
	c.Put(hashOf("three"), []byte("abcde"))

	stats := c.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.LessOrEqual(t, stats.CurrentSize, int64(10))

	_, ok := c.Get(hashOf("three"))
	assert.True(t, ok)
}

func TestLRUBlobCache_IgnoresOversized(t *testing.T) {
	t.Parallel()

	c := NewLRUBlobCache(4)
	c.Put(hashOf("big"), []byte("too large"))

	assert.Equal(t, 0, c.Stats().Entries)

	c.Put(hashOf("ok"), []byte("ok"))
	c.Clear()
	assert.Equal(t, LRUStats{MaxSize: 4, Misses: 0}, c.Stats())
}

func TestLRUBlobCache_DefaultSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(DefaultLRUCacheSize), NewLRUBlobCache(0).Stats().MaxSize)
}

func TestParseSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
	}{
		{"", DefaultLRUCacheSize},
		{"0", 0},
		{"64MiB", 64 << 20},
		{"1 MB", 1_000_000},
		{"512", 512},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseSize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseSize("lots")
	require.Error(t, err)
}

func TestLRUStats_String(t *testing.T) {
	t.Parallel()

	s := LRUStats{Hits: 3, Misses: 1, Entries: 2, CurrentSize: 2048, MaxSize: 1 << 20}
	assert.Equal(t, "2 entries, 2.0 KiB of 1.0 MiB, 75.0% hits", s.String())
}

func TestCachingStore(t *testing.T) {
	t.Parallel()

	mem := gitlib.NewMemStore()
	mem.Commit("one", map[string][]byte{"f": []byte("content\n")})

	store := NewCachingStore(mem, 1024)
	ctx := context.Background()
	hash := gitlib.BlobHash([]byte("content\n"))

	first, err := store.ReadBlob(ctx, hash)
	require.NoError(t, err)

	first[0] = 'X'

	mem.DeleteBlob(hash)

	second, err := store.ReadBlob(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, []byte("content\n"), second)

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	_, err = store.ReadBlob(ctx, gitlib.BlobHash([]byte("missing")))
	require.ErrorIs(t, err, gitlib.ErrRepositoryAccess)

	head, err := store.ResolveRef(ctx, "HEAD")
	require.NoError(t, err)
	assert.False(t, head.IsZero())
}
