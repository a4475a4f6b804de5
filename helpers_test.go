package branchver

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// testSignature returns a signature one minute after the previous commit so
// that commit time order is deterministic.
func testSignature(repo *git.Repository) *object.Signature {
	n := 0
	if commits, err := repo.CommitObjects(); err == nil {
		_ = commits.ForEach(func(*object.Commit) error {
			n++
			return nil
		})
	}
	return &object.Signature{
		Name:  "test",
		Email: "test@example.com",
		When:  testEpoch.Add(time.Duration(n) * time.Minute),
	}
}

// testRepoCreate creates a new in-memory git repository for testing
func testRepoCreate(t *testing.T) *git.Repository {
	t.Helper()
	repo, err := git.Init(memory.NewStorage(), memfs.New())
	require.NoError(t, err)
	return repo
}

// testRepoFSCreate creates a new filesystem-based git repository for testing
func testRepoFSCreate(t *testing.T, path string) *git.Repository {
	t.Helper()
	fs := osfs.New(path)
	dot, err := fs.Chroot(git.GitDirName)
	require.NoError(t, err)
	repo, err := git.Init(filesystem.NewStorage(dot, cache.NewObjectLRUDefault()), fs)
	require.NoError(t, err)
	return repo
}

// testCommit writes a file and commits it, returning the commit hash
func testCommit(t *testing.T, repo *git.Repository, filename, content string) plumbing.Hash {
	t.Helper()
	workTree, err := repo.Worktree()
	require.NoError(t, err)

	addFile(t, workTree, filename, content)

	hash, err := workTree.Commit("Commit "+filename, &git.CommitOptions{Author: testSignature(repo)})
	require.NoError(t, err)
	return hash
}

// testCheckout switches to a branch, creating it at HEAD when asked
func testCheckout(t *testing.T, repo *git.Repository, branch string, create bool) {
	t.Helper()
	workTree, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, workTree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: create,
	}))
}

// testTag creates a lightweight tag, or an annotated one with a message
func testTag(t *testing.T, repo *git.Repository, name string, hash plumbing.Hash, message string) {
	t.Helper()
	var opts *git.CreateTagOptions
	if message != "" {
		opts = &git.CreateTagOptions{Tagger: testSignature(repo), Message: message}
	}
	_, err := repo.CreateTag(name, hash, opts)
	require.NoError(t, err)
}

// addFile is a helper function to add a file to the worktree
func addFile(t *testing.T, worktree *git.Worktree, filename, content string) {
	t.Helper()
	require.NoError(t, writeFile(worktree.Filesystem, filename, content))

	_, err := worktree.Add(filename)
	require.NoError(t, err)
}

// writeFile writes content to a file in the given filesystem
func writeFile(fs billy.Filesystem, filename, content string) error {
	file, err := fs.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.Write([]byte(content))
	return err
}
