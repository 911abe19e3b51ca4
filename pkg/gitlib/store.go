package gitlib

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"
)

// ErrRepositoryAccess marks failures to read a commit, tree or blob. Corpus
// builds treat it as fatal: a partial corpus is not well-defined.
var ErrRepositoryAccess = errors.New("repository access")

// AccessError describes an unreadable repository object.
type AccessError struct {
	Op     string
	Object string
	Err    error
}

// Error implements error.
func (e *AccessError) Error() string {
	return fmt.Sprintf("repository access: %s %s: %v", e.Op, e.Object, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AccessError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRepositoryAccess.
func (e *AccessError) Is(target error) bool {
	return target == ErrRepositoryAccess
}

func accessError(op string, object fmt.Stringer, err error) error {
	return &AccessError{Op: op, Object: object.String(), Err: err}
}

// CommitInfo is the immutable view of a commit consumed by corpus builders.
type CommitInfo struct {
	Hash    Hash
	Parents []Hash
	Tree    Hash
	Author  Signature
	Message string
}

// IsRoot reports whether the commit has no parents.
func (c CommitInfo) IsRoot() bool {
	return len(c.Parents) == 0
}

// TreeFile is one blob reachable from a tree.
type TreeFile struct {
	Path string
	Hash Hash
}

// WalkOptions configures commit graph traversal.
type WalkOptions struct {
	// FirstParent follows only the first parent of merge commits.
	FirstParent bool
	// Limit caps the number of commits yielded (0 = no limit).
	Limit int
	// Since stops the walk at the first commit authored before it.
	Since time.Time
}

// Store is the read-only object store the corpus pipeline consumes.
// Implementations must yield commits in topological order with commit time
// as tie-break: a commit is always yielded before its parents, and every
// reachable commit exactly once. A zero tree hash stands for the empty tree.
type Store interface {
	// ResolveRef resolves a revision expression (branch, tag, hash, HEAD) to a commit.
	ResolveRef(ctx context.Context, ref string) (Hash, error)
	// LookupCommit returns the commit with the given hash.
	LookupCommit(ctx context.Context, hash Hash) (CommitInfo, error)
	// Walk yields the commits reachable from start.
	Walk(ctx context.Context, start Hash, opts WalkOptions) iter.Seq2[CommitInfo, error]
	// DiffTrees enumerates per-path changes between two trees.
	DiffTrees(ctx context.Context, oldTree, newTree Hash) (Changes, error)
	// ReadBlob returns the raw content of a blob.
	ReadBlob(ctx context.Context, hash Hash) ([]byte, error)
	// ListFiles returns every blob in a tree, depth first, sorted by path within a directory.
	ListFiles(ctx context.Context, tree Hash) ([]TreeFile, error)
}
