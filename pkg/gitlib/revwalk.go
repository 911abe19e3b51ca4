package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// RevWalk wraps a libgit2 revision walker.
type RevWalk struct {
	walk *git2go.RevWalk
}

// Push adds a commit to start walking from.
func (w *RevWalk) Push(hash Hash) error {
	err := w.walk.Push(hash.ToOid())
	if err != nil {
		return fmt.Errorf("push to revwalk: %w", err)
	}

	return nil
}

// Sorting sets the sorting mode for the walker.
func (w *RevWalk) Sorting(mode git2go.SortType) {
	w.walk.Sorting(mode)
}

// Next returns the next commit hash in the walk. done is true once the walk
// is exhausted; any other failure is returned as err.
func (w *RevWalk) Next() (hash Hash, done bool, err error) {
	oid := new(git2go.Oid)

	nextErr := w.walk.Next(oid)
	if git2go.IsErrorCode(nextErr, git2go.ErrorCodeIterOver) {
		return Hash{}, true, nil
	}

	if nextErr != nil {
		return Hash{}, false, fmt.Errorf("revwalk next: %w", nextErr)
	}

	return HashFromOid(oid), false, nil
}

// Free releases the walker resources.
func (w *RevWalk) Free() {
	if w.walk != nil {
		w.walk.Free()
		w.walk = nil
	}
}
