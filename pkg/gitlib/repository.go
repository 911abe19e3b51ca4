package gitlib

import (
	"context"
	"fmt"
	"iter"

	git2go "github.com/libgit2/git2go/v34"
)

// Repository wraps a libgit2 repository and implements Store.
type Repository struct {
	repo          *git2go.Repository
	path          string
	detectRenames bool
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithRenameDetection makes DiffTrees pair deleted and added paths with
// similar content into Rename changes.
func WithRenameDetection(enabled bool) RepositoryOption {
	return func(r *Repository) {
		r.detectRenames = enabled
	}
}

var _ Store = (*Repository)(nil)

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string, opts ...RepositoryOption) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	r := &Repository{repo: repo, path: path}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the HEAD reference target.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// ResolveRef resolves a revision expression to the commit it points at.
// Annotated tags are peeled.
func (r *Repository) ResolveRef(_ context.Context, ref string) (Hash, error) {
	obj, err := r.repo.RevparseSingle(ref)
	if err != nil {
		return Hash{}, fmt.Errorf("resolve %q: %w", ref, err)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, fmt.Errorf("resolve %q: not a commit: %w", ref, err)
	}
	defer peeled.Free()

	return HashFromOid(peeled.Id()), nil
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(_ context.Context, hash Hash) (CommitInfo, error) {
	commit, err := r.lookupCommit(hash)
	if err != nil {
		return CommitInfo{}, accessError("lookup commit", hash, err)
	}
	defer commit.Free()

	return commit.Info(), nil
}

func (r *Repository) lookupCommit(hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit: %w", err)
	}

	return &Commit{commit: commit}, nil
}

// LookupBlob returns the blob with the given hash.
func (r *Repository) LookupBlob(hash Hash) (*Blob, error) {
	blob, err := r.repo.LookupBlob(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup blob: %w", err)
	}

	return &Blob{blob: blob}, nil
}

// LookupTree returns the tree with the given hash.
func (r *Repository) LookupTree(hash Hash) (*Tree, error) {
	tree, err := r.repo.LookupTree(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup tree: %w", err)
	}

	return &Tree{tree: tree}, nil
}

// Walk yields commits reachable from start, children before parents with
// commit time as tie-break. The underlying revwalk is freed when the
// consumer stops early.
func (r *Repository) Walk(ctx context.Context, start Hash, opts WalkOptions) iter.Seq2[CommitInfo, error] {
	return func(yield func(CommitInfo, error) bool) {
		walk, err := r.newRevWalk(start, opts)
		if err != nil {
			yield(CommitInfo{}, accessError("walk", start, err))

			return
		}
		defer walk.Free()

		count := 0

		for {
			if opts.Limit > 0 && count >= opts.Limit {
				return
			}

			if ctx.Err() != nil {
				yield(CommitInfo{}, ctx.Err())

				return
			}

			hash, done, nextErr := walk.Next()
			if done {
				return
			}

			if nextErr != nil {
				yield(CommitInfo{}, accessError("walk", start, nextErr))

				return
			}

			info, lookupErr := r.LookupCommit(ctx, hash)
			if lookupErr != nil {
				yield(CommitInfo{}, lookupErr)

				return
			}

			if !opts.Since.IsZero() && info.Author.When.Before(opts.Since) {
				return
			}

			count++

			if !yield(info, nil) {
				return
			}
		}
	}
}

func (r *Repository) newRevWalk(start Hash, opts WalkOptions) (*RevWalk, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	rw := &RevWalk{walk: walk}

	err = rw.Push(start)
	if err != nil {
		rw.Free()

		return nil, err
	}

	// Topological order guarantees a commit is seen before any of its parents.
	rw.Sorting(git2go.SortTopological | git2go.SortTime)

	if opts.FirstParent {
		walk.SimplifyFirstParent()
	}

	return rw, nil
}

// DiffTrees enumerates changes between two trees. A zero oldTree is the empty tree.
func (r *Repository) DiffTrees(_ context.Context, oldTree, newTree Hash) (Changes, error) {
	var oldT, newT *Tree

	if !oldTree.IsZero() {
		tree, err := r.LookupTree(oldTree)
		if err != nil {
			return nil, accessError("lookup tree", oldTree, err)
		}
		defer tree.Free()

		oldT = tree
	}

	if !newTree.IsZero() {
		tree, err := r.LookupTree(newTree)
		if err != nil {
			return nil, accessError("lookup tree", newTree, err)
		}
		defer tree.Free()

		newT = tree
	}

	changes, err := TreeDiff(r, oldT, newT)
	if err != nil {
		return nil, accessError("diff trees", newTree, err)
	}

	return changes, nil
}

// ReadBlob returns a copy of the blob content.
func (r *Repository) ReadBlob(_ context.Context, hash Hash) ([]byte, error) {
	blob, err := r.LookupBlob(hash)
	if err != nil {
		return nil, accessError("read blob", hash, err)
	}
	defer blob.Free()

	return blob.Contents(), nil
}

// ListFiles returns every blob reachable from tree.
func (r *Repository) ListFiles(_ context.Context, tree Hash) ([]TreeFile, error) {
	if tree.IsZero() {
		return nil, nil
	}

	root, err := r.LookupTree(tree)
	if err != nil {
		return nil, accessError("lookup tree", tree, err)
	}
	defer root.Free()

	var files []TreeFile

	err = walkTree(r, root, "", func(path string, entry *TreeEntry) error {
		files = append(files, TreeFile{Path: path, Hash: entry.Hash()})

		return nil
	})
	if err != nil {
		return nil, accessError("list files", tree, err)
	}

	return files, nil
}

// DiffTreeToTree computes the diff between two trees. Nil trees are empty.
func (r *Repository) DiffTreeToTree(oldTree, newTree *Tree) (*Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	var oldT, newT *git2go.Tree
	if oldTree != nil {
		oldT = oldTree.tree
	}

	if newTree != nil {
		newT = newTree.tree
	}

	diff, err := r.repo.DiffTreeToTree(oldT, newT, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	return &Diff{diff: diff}, nil
}

// Native returns the underlying libgit2 repository for advanced operations.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}
