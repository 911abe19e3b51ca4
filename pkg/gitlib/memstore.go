package gitlib

import (
	"cmp"
	"context"
	"crypto/sha1" //nolint:gosec // git object ids are SHA-1.
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by MemStore for unknown objects and refs.
var ErrObjectNotFound = errors.New("object not found")

// memStoreEpoch is the author time of the first commit made through MemStore.
var memStoreEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// MemStore is an in-memory Store. Blob hashes are computed the way git
// computes them; tree and commit hashes are stable but not git-compatible.
// It is not safe for concurrent mutation.
type MemStore struct {
	blobs   map[Hash][]byte
	trees   map[Hash]map[string]Hash
	commits map[Hash]CommitInfo
	refs    map[string]Hash
	clock   time.Time
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		blobs:   make(map[Hash][]byte),
		trees:   make(map[Hash]map[string]Hash),
		commits: make(map[Hash]CommitInfo),
		refs:    make(map[string]Hash),
		clock:   memStoreEpoch,
	}
}

// BlobHash returns the git object id of content stored as a blob.
func BlobHash(content []byte) Hash {
	h := sha1.New() //nolint:gosec // git object ids are SHA-1.
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)

	var hash Hash

	copy(hash[:], h.Sum(nil))

	return hash
}

// AddBlob stores content and returns its hash.
func (s *MemStore) AddBlob(content []byte) Hash {
	hash := BlobHash(content)
	s.blobs[hash] = slices.Clone(content)

	return hash
}

// AddTree stores a full snapshot mapping paths to contents and returns the
// tree hash. An empty snapshot yields the zero hash, the empty tree.
func (s *MemStore) AddTree(files map[string][]byte) Hash {
	if len(files) == 0 {
		return Hash{}
	}

	entries := make(map[string]Hash, len(files))
	h := sha1.New() //nolint:gosec // git object ids are SHA-1.

	for _, path := range slices.Sorted(maps.Keys(files)) {
		blob := s.AddBlob(files[path])
		entries[path] = blob
		fmt.Fprintf(h, "%s\x00%s\n", path, blob)
	}

	var hash Hash

	copy(hash[:], h.Sum(nil))
	s.trees[hash] = entries

	return hash
}

// Commit records a commit with the given snapshot and parents, moves HEAD to
// it and returns its hash. Each commit is authored one minute after the
// previous one.
func (s *MemStore) Commit(message string, files map[string][]byte, parents ...Hash) Hash {
	tree := s.AddTree(files)
	when := s.clock
	s.clock = s.clock.Add(time.Minute)

	h := sha1.New() //nolint:gosec // git object ids are SHA-1.
	fmt.Fprintf(h, "tree %s\n", tree)

	for _, p := range parents {
		fmt.Fprintf(h, "parent %s\n", p)
	}

	fmt.Fprintf(h, "time %d\n\n%s", when.Unix(), message)

	var hash Hash

	copy(hash[:], h.Sum(nil))

	s.commits[hash] = CommitInfo{
		Hash:    hash,
		Parents: slices.Clone(parents),
		Tree:    tree,
		Author:  Signature{Name: "Test", Email: "test@example.com", When: when},
		Message: message,
	}
	s.refs["HEAD"] = hash

	return hash
}

// SetRef points a named reference at a commit.
func (s *MemStore) SetRef(name string, hash Hash) {
	s.refs[name] = hash
}

// ResolveRef resolves a reference name or a full commit hash.
func (s *MemStore) ResolveRef(_ context.Context, ref string) (Hash, error) {
	if hash, ok := s.refs[ref]; ok {
		return hash, nil
	}

	hash, err := ParseHash(ref)
	if err == nil {
		if _, ok := s.commits[hash]; ok {
			return hash, nil
		}
	}

	return Hash{}, fmt.Errorf("resolve %q: %w", ref, ErrObjectNotFound)
}

// LookupCommit returns the commit with the given hash.
func (s *MemStore) LookupCommit(_ context.Context, hash Hash) (CommitInfo, error) {
	info, ok := s.commits[hash]
	if !ok {
		return CommitInfo{}, accessError("lookup commit", hash, ErrObjectNotFound)
	}

	return info, nil
}

// Walk yields reachable commits children first, newest first among commits
// whose children have all been yielded.
func (s *MemStore) Walk(ctx context.Context, start Hash, opts WalkOptions) iter.Seq2[CommitInfo, error] {
	return func(yield func(CommitInfo, error) bool) {
		pending, err := s.childCounts(start, opts.FirstParent)
		if err != nil {
			yield(CommitInfo{}, err)

			return
		}

		ready := []Hash{start}

		for count := 0; len(ready) > 0; count++ {
			if opts.Limit > 0 && count >= opts.Limit {
				return
			}

			if ctx.Err() != nil {
				yield(CommitInfo{}, ctx.Err())

				return
			}

			next := s.newest(ready)
			ready = slices.DeleteFunc(ready, func(h Hash) bool { return h == next })
			info := s.commits[next]

			if !opts.Since.IsZero() && info.Author.When.Before(opts.Since) {
				return
			}

			if !yield(info, nil) {
				return
			}

			for _, parent := range walkParents(info, opts.FirstParent) {
				pending[parent]--
				if pending[parent] == 0 {
					ready = append(ready, parent)
				}
			}
		}
	}
}

// childCounts returns, for every commit reachable from start, how many of its
// reachable children point at it.
func (s *MemStore) childCounts(start Hash, firstParent bool) (map[Hash]int, error) {
	counts := map[Hash]int{start: 0}
	stack := []Hash{start}
	seen := map[Hash]bool{}

	for len(stack) > 0 {
		hash := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen[hash] {
			continue
		}

		seen[hash] = true

		info, ok := s.commits[hash]
		if !ok {
			return nil, accessError("walk", hash, ErrObjectNotFound)
		}

		for _, parent := range walkParents(info, firstParent) {
			counts[parent]++
			stack = append(stack, parent)
		}
	}

	return counts, nil
}

func (s *MemStore) newest(hashes []Hash) Hash {
	return slices.MaxFunc(hashes, func(a, b Hash) int {
		ta, tb := s.commits[a].Author.When, s.commits[b].Author.When
		if c := ta.Compare(tb); c != 0 {
			return c
		}

		return strings.Compare(b.String(), a.String())
	})
}

func walkParents(info CommitInfo, firstParent bool) []Hash {
	if firstParent && len(info.Parents) > 1 {
		return info.Parents[:1]
	}

	return info.Parents
}

// DiffTrees compares two snapshots path by path. Renames are not detected.
func (s *MemStore) DiffTrees(_ context.Context, oldTree, newTree Hash) (Changes, error) {
	oldFiles, err := s.tree(oldTree)
	if err != nil {
		return nil, err
	}

	newFiles, err := s.tree(newTree)
	if err != nil {
		return nil, err
	}

	var changes Changes

	for path, oldHash := range oldFiles {
		newHash, ok := newFiles[path]

		switch {
		case !ok:
			changes = append(changes, &Change{Action: Delete, From: s.entry(path, oldHash)})
		case newHash != oldHash:
			changes = append(changes, &Change{Action: Modify, From: s.entry(path, oldHash), To: s.entry(path, newHash)})
		}
	}

	for path, newHash := range newFiles {
		if _, ok := oldFiles[path]; !ok {
			changes = append(changes, &Change{Action: Insert, To: s.entry(path, newHash)})
		}
	}

	slices.SortFunc(changes, func(a, b *Change) int {
		return cmp.Compare(a.Path(), b.Path())
	})

	return changes, nil
}

func (s *MemStore) entry(path string, hash Hash) ChangeEntry {
	return ChangeEntry{Name: path, Hash: hash, Size: int64(len(s.blobs[hash])), Mode: uint16(0o100644)}
}

func (s *MemStore) tree(hash Hash) (map[string]Hash, error) {
	if hash.IsZero() {
		return nil, nil
	}

	files, ok := s.trees[hash]
	if !ok {
		return nil, accessError("lookup tree", hash, ErrObjectNotFound)
	}

	return files, nil
}

// ReadBlob returns a copy of the blob content.
func (s *MemStore) ReadBlob(_ context.Context, hash Hash) ([]byte, error) {
	content, ok := s.blobs[hash]
	if !ok {
		return nil, accessError("read blob", hash, ErrObjectNotFound)
	}

	return slices.Clone(content), nil
}

// ListFiles returns the files of a snapshot sorted by path.
func (s *MemStore) ListFiles(_ context.Context, tree Hash) ([]TreeFile, error) {
	files, err := s.tree(tree)
	if err != nil {
		return nil, err
	}

	out := make([]TreeFile, 0, len(files))
	for _, path := range slices.Sorted(maps.Keys(files)) {
		out = append(out, TreeFile{Path: path, Hash: files[path]})
	}

	return out, nil
}

// DeleteBlob drops a blob so reads of it fail. Used to simulate a corrupt store.
func (s *MemStore) DeleteBlob(hash Hash) {
	delete(s.blobs, hash)
}
