package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeAction represents the type of change in a diff.
type ChangeAction int

const (
	// Insert indicates a new file was added.
	Insert ChangeAction = iota
	// Delete indicates a file was removed.
	Delete
	// Modify indicates a file was modified.
	Modify
	// Rename indicates a file was moved, possibly with edits.
	Rename
)

// String returns the action name.
func (a ChangeAction) String() string {
	switch a {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	case Modify:
		return "modify"
	case Rename:
		return "rename"
	default:
		return fmt.Sprintf("ChangeAction(%d)", int(a))
	}
}

// filemodeGitlink is the tree entry mode of a submodule commit pointer.
const filemodeGitlink = uint16(git2go.FilemodeCommit)

// Change represents a single file change between two trees.
type Change struct {
	Action ChangeAction
	From   ChangeEntry
	To     ChangeEntry
}

// ChangeEntry represents one side of a change (old or new file).
// The zero entry stands for "no file" on that side.
type ChangeEntry struct {
	Name string
	Hash Hash
	Size int64
	Mode uint16
}

// Path returns the path the change is reported under: the new path unless
// the file was deleted.
func (c *Change) Path() string {
	if c.Action == Delete {
		return c.From.Name
	}

	return c.To.Name
}

// Changes is a collection of Change objects.
type Changes []*Change

// TreeDiff computes the changes between two trees using libgit2.
// A nil oldTree is the empty tree, so every path of newTree is an insertion.
// Skips diff when both tree OIDs are equal (e.g. metadata-only commits).
// Submodule pointers are not blobs and are left out.
func TreeDiff(repo *Repository, oldTree, newTree *Tree) (Changes, error) {
	if oldTree != nil && newTree != nil && oldTree.Hash() == newTree.Hash() {
		return make(Changes, 0), nil
	}

	diff, err := repo.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	if repo.detectRenames {
		err = diff.FindRenames()
		if err != nil {
			return nil, err
		}
	}

	numDeltas, numErr := diff.NumDeltas()
	if numErr != nil {
		return nil, fmt.Errorf("get num deltas: %w", numErr)
	}

	changes := make(Changes, 0, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, deltaErr
		}

		change, ok := changeFromDelta(delta)
		if !ok {
			continue
		}

		changes = append(changes, change)
	}

	return changes, nil
}

func changeFromDelta(delta DiffDelta) (*Change, bool) {
	if delta.OldFile.Mode == filemodeGitlink || delta.NewFile.Mode == filemodeGitlink {
		return nil, false
	}

	oldEntry := delta.OldFile.entry()
	newEntry := delta.NewFile.entry()

	switch delta.Status {
	case git2go.DeltaAdded:
		return &Change{Action: Insert, To: newEntry}, true
	case git2go.DeltaDeleted:
		return &Change{Action: Delete, From: oldEntry}, true
	case git2go.DeltaModified:
		return &Change{Action: Modify, From: oldEntry, To: newEntry}, true
	case git2go.DeltaRenamed, git2go.DeltaCopied:
		return &Change{Action: Rename, From: oldEntry, To: newEntry}, true
	case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
		git2go.DeltaTypeChange, git2go.DeltaUnreadable, git2go.DeltaConflicted:
		return nil, false
	default:
		return nil, false
	}
}

// walkTree calls cb for every file blob below tree, descending into subtrees
// depth first. Paths are slash separated and relative to the walk root.
func walkTree(repo *Repository, tree *Tree, prefix string, cb func(path string, entry *TreeEntry) error) error {
	for entry := range tree.Entries() {
		path := entry.Name()
		if prefix != "" {
			path = prefix + "/" + path
		}

		switch {
		case entry.IsFile():
			if err := cb(path, entry); err != nil {
				return err
			}
		case entry.IsDir():
			subtree, err := repo.LookupTree(entry.Hash())
			if err != nil {
				return err
			}

			err = walkTree(repo, subtree, path, cb)
			subtree.Free()

			if err != nil {
				return err
			}
		}
	}

	return nil
}
