package gitlib

import (
	git2go "github.com/libgit2/git2go/v34"
)

// Commit wraps a libgit2 commit.
type Commit struct {
	commit *git2go.Commit
}

// Hash returns the commit hash.
func (c *Commit) Hash() Hash {
	return HashFromOid(c.commit.Id())
}

// Author returns the commit author.
func (c *Commit) Author() Signature {
	sig := c.commit.Author()

	return Signature{
		Name:  sig.Name,
		Email: sig.Email,
		When:  sig.When,
	}
}

// Message returns the commit message.
func (c *Commit) Message() string {
	return c.commit.Message()
}

// NumParents returns the number of parent commits.
func (c *Commit) NumParents() int {
	return int(c.commit.ParentCount())
}

// ParentHash returns the hash of the nth parent.
func (c *Commit) ParentHash(n int) Hash {
	return HashFromOid(c.commit.ParentId(uint(n)))
}

// TreeHash returns the hash of the commit's root tree.
func (c *Commit) TreeHash() Hash {
	return HashFromOid(c.commit.TreeId())
}

// Info copies the commit into a CommitInfo that outlives the libgit2 object.
func (c *Commit) Info() CommitInfo {
	parents := make([]Hash, c.NumParents())
	for i := range parents {
		parents[i] = c.ParentHash(i)
	}

	return CommitInfo{
		Hash:    c.Hash(),
		Parents: parents,
		Tree:    c.TreeHash(),
		Author:  c.Author(),
		Message: c.Message(),
	}
}

// Free releases the commit resources.
func (c *Commit) Free() {
	if c.commit != nil {
		c.commit.Free()
		c.commit = nil
	}
}
