// Package gitlibtest builds throwaway libgit2 repositories for tests.
package gitlibtest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/topicofchange/pkg/gitlib"
)

// Repo is a non-bare repository in a temporary directory. Every commit is
// authored one minute after the previous one so time ordering is stable.
type Repo struct {
	t      testing.TB
	Path   string
	native *git2go.Repository
	clock  time.Time
}

// NewRepo initializes an empty repository, freed when the test ends.
func NewRepo(t testing.TB) *Repo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &Repo{
		t:      t,
		Path:   dir,
		native: repo,
		clock:  time.Date(2021, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
}

// WriteFile creates or overwrites a file in the working directory.
func (r *Repo) WriteFile(name, content string) {
	r.t.Helper()

	r.WriteBytes(name, []byte(content))
}

// WriteBytes creates or overwrites a file with raw content.
func (r *Repo) WriteBytes(name string, data []byte) {
	r.t.Helper()

	path := filepath.Join(r.Path, name)

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	require.NoError(r.t, err)

	err = os.WriteFile(path, data, 0o644)
	require.NoError(r.t, err)
}

// Symlink creates a symbolic link name pointing at target.
func (r *Repo) Symlink(target, name string) {
	r.t.Helper()

	path := filepath.Join(r.Path, name)

	require.NoError(r.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(r.t, os.Symlink(target, path))
}

// Remove deletes a file from the working directory.
func (r *Repo) Remove(name string) {
	r.t.Helper()

	err := os.Remove(filepath.Join(r.Path, name))
	require.NoError(r.t, err)
}

// Commit snapshots the working directory on top of HEAD.
func (r *Repo) Commit(message string) gitlib.Hash {
	r.t.Helper()

	var parents []gitlib.Hash

	head, err := r.native.Head()
	if err == nil {
		parents = append(parents, gitlib.HashFromOid(head.Target()))
		head.Free()
	}

	return r.CommitWithParents(message, parents...)
}

// CommitWithParents snapshots the working directory with explicit parents
// and detaches HEAD at the new commit.
func (r *Repo) CommitWithParents(message string, parents ...gitlib.Hash) gitlib.Hash {
	r.t.Helper()

	index, err := r.native.Index()
	require.NoError(r.t, err)

	defer index.Free()

	err = index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil)
	require.NoError(r.t, err)

	err = index.UpdateAll([]string{"*"}, nil)
	require.NoError(r.t, err)

	err = index.Write()
	require.NoError(r.t, err)

	treeID, err := index.WriteTree()
	require.NoError(r.t, err)

	tree, err := r.native.LookupTree(treeID)
	require.NoError(r.t, err)

	defer tree.Free()

	sig := &git2go.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  r.clock,
	}
	r.clock = r.clock.Add(time.Minute)

	nativeParents := make([]*git2go.Commit, 0, len(parents))

	for _, p := range parents {
		parent, lookupErr := r.native.LookupCommit(p.ToOid())
		require.NoError(r.t, lookupErr)

		nativeParents = append(nativeParents, parent)
	}

	oid, err := r.native.CreateCommit("", sig, sig, message, tree, nativeParents...)
	require.NoError(r.t, err)

	for _, parent := range nativeParents {
		parent.Free()
	}

	err = r.native.SetHeadDetached(oid)
	require.NoError(r.t, err)

	return gitlib.HashFromOid(oid)
}

// Tag creates a lightweight tag.
func (r *Repo) Tag(name string, target gitlib.Hash) {
	r.t.Helper()

	ref, err := r.native.References.Create("refs/tags/"+name, target.ToOid(), true, "tag")
	require.NoError(r.t, err)

	ref.Free()
}

// Open opens the repository through gitlib, freed when the test ends.
func (r *Repo) Open(opts ...gitlib.RepositoryOption) *gitlib.Repository {
	r.t.Helper()

	repo, err := gitlib.OpenRepository(r.Path, opts...)
	require.NoError(r.t, err)

	r.t.Cleanup(repo.Free)

	return repo
}
