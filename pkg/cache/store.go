package cache

import (
	"context"
	"slices"

	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib"
)

// CachingStore serves ReadBlob from an LRUBlobCache and delegates every
// other call. Corpus passes read the same blobs again on each pass and a
// child commit re-reads most of its parent's blobs.
type CachingStore struct {
	gitlib.Store

	cache *LRUBlobCache
}

var _ gitlib.Store = (*CachingStore)(nil)

// NewCachingStore wraps store with a cache of maxSize bytes.
func NewCachingStore(store gitlib.Store, maxSize int64) *CachingStore {
	return &CachingStore{Store: store, cache: NewLRUBlobCache(maxSize)}
}

// ReadBlob returns a private copy of the blob contents.
func (s *CachingStore) ReadBlob(ctx context.Context, hash gitlib.Hash) ([]byte, error) {
	if data, ok := s.cache.Get(hash); ok {
		return slices.Clone(data), nil
	}

	data, err := s.Store.ReadBlob(ctx, hash)
	if err != nil {
		return nil, err
	}

	s.cache.Put(hash, data)

	return data, nil
}

// Stats returns the cache statistics.
func (s *CachingStore) Stats() LRUStats {
	return s.cache.Stats()
}
