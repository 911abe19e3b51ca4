package gitlib

import (
	"iter"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// Signature is the author or committer of a commit.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Tree is a libgit2 tree handle. Callers must Free it.
type Tree struct {
	tree *git2go.Tree
}

// Hash returns the tree id.
func (t *Tree) Hash() Hash {
	return HashFromOid(t.tree.Id())
}

// Entries yields the direct children of the tree in stored order.
func (t *Tree) Entries() iter.Seq[*TreeEntry] {
	return func(yield func(*TreeEntry) bool) {
		for i := range t.tree.EntryCount() {
			entry := t.tree.EntryByIndex(i)
			if entry == nil {
				continue
			}

			if !yield(&TreeEntry{entry: entry}) {
				return
			}
		}
	}
}

// Free releases the tree.
func (t *Tree) Free() {
	if t.tree != nil {
		t.tree.Free()
		t.tree = nil
	}
}

// TreeEntry is one child of a Tree.
type TreeEntry struct {
	entry *git2go.TreeEntry
}

// Name returns the base name of the entry.
func (e *TreeEntry) Name() string {
	return e.entry.Name
}

// Hash returns the id of the object the entry points at.
func (e *TreeEntry) Hash() Hash {
	return HashFromOid(e.entry.Id)
}

// IsDir reports whether the entry is a subtree.
func (e *TreeEntry) IsDir() bool {
	return e.entry.Type == git2go.ObjectTree
}

// IsFile reports whether the entry is a regular or executable file blob.
// Symlinks and submodule links carry no source text and are excluded.
func (e *TreeEntry) IsFile() bool {
	if e.entry.Type != git2go.ObjectBlob {
		return false
	}

	return e.entry.Filemode == git2go.FilemodeBlob || e.entry.Filemode == git2go.FilemodeBlobExecutable
}

// Blob is a libgit2 blob handle. Callers must Free it.
type Blob struct {
	blob *git2go.Blob
}

// Contents returns a Go-owned copy of the blob bytes.
func (b *Blob) Contents() []byte {
	return b.blob.Contents()
}

// Free releases the blob.
func (b *Blob) Free() {
	if b.blob != nil {
		b.blob.Free()
		b.blob = nil
	}
}
