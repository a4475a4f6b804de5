package branchver

import (
	"context"
	"errors"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"
)

func snapshotOf(t *testing.T, repo *git.Repository, opts SnapshotOptions) *RepositorySnapshot {
	t.Helper()
	snap, err := NewGitRepository(repo).Snapshot(context.Background(), opts)
	require.NoError(t, err)
	return snap
}

func TestSnapshot(t *testing.T) {
	t.Run("Repo with no commits", func(t *testing.T) {
		repo := testRepoCreate(t)
		_, err := NewGitRepository(repo).Snapshot(context.Background(), SnapshotOptions{})
		require.ErrorIs(t, err, ErrNoCommits)
	})

	t.Run("Single commit", func(t *testing.T) {
		repo := testRepoCreate(t)
		hash := testCommit(t, repo, "test.txt", "Hello world")

		snap := snapshotOf(t, repo, SnapshotOptions{})
		require.Equal(t, "master", snap.Branch)
		require.Equal(t, hash.String(), snap.Commit)
		require.Equal(t, hash.String()[:7], snap.CommitAbbrev)
		require.True(t, testEpoch.Equal(snap.CommitTime))
		require.True(t, snap.Shallow)
		require.False(t, snap.Dirty)
		require.Empty(t, snap.Tags)
		require.Empty(t, snap.CurrentTag)
		require.Empty(t, snap.LastMatchingTag)
	})

	t.Run("Abbreviation length", func(t *testing.T) {
		repo := testRepoCreate(t)
		hash := testCommit(t, repo, "test.txt", "Hello world")

		snap := snapshotOf(t, repo, SnapshotOptions{AbbrevLength: 10})
		require.Equal(t, hash.String()[:10], snap.CommitAbbrev)
	})

	t.Run("Release branch with tags", func(t *testing.T) {
		repo := testRepoCreate(t)
		first := testCommit(t, repo, "a.txt", "a")
		testTag(t, repo, "2.0.1", first, "")
		testCheckout(t, repo, "release/2.0", true)
		second := testCommit(t, repo, "b.txt", "b")
		testTag(t, repo, "2.0.2", second, "")

		snap := snapshotOf(t, repo, SnapshotOptions{})
		require.Equal(t, "release/2.0", snap.Branch)
		require.False(t, snap.Shallow)
		require.Equal(t, "2.0.2", snap.CurrentTag)
		require.Equal(t, "2.0.2", snap.LastMatchingTag)
		require.Equal(t, []string{"2.0.2", "2.0.1"}, snap.Tags)

		testCommit(t, repo, "c.txt", "c")
		snap = snapshotOf(t, repo, SnapshotOptions{})
		require.Empty(t, snap.CurrentTag)
		require.Equal(t, "2.0.2", snap.LastMatchingTag)

		info, err := Resolve(snap, DefaultOptions())
		require.NoError(t, err)
		require.Equal(t, "2.0.3", info.Display)
	})

	t.Run("Annotated tags are peeled", func(t *testing.T) {
		repo := testRepoCreate(t)
		testCommit(t, repo, "a.txt", "a")
		hash := testCommit(t, repo, "b.txt", "b")
		testTag(t, repo, "2.0.5", hash, "Release 2.0.5")

		snap := snapshotOf(t, repo, SnapshotOptions{})
		require.Equal(t, "2.0.5", snap.CurrentTag)
		require.Equal(t, []string{"2.0.5"}, snap.Tags)
	})

	t.Run("Short tags get their equivalents", func(t *testing.T) {
		repo := testRepoCreate(t)
		testCommit(t, repo, "a.txt", "a")
		hash := testCommit(t, repo, "b.txt", "b")
		testTag(t, repo, "2", hash, "")

		snap := snapshotOf(t, repo, SnapshotOptions{})
		require.Equal(t, []string{"2.0.0", "2.0", "2"}, snap.Tags)
		require.Equal(t, "2", snap.LastMatchingTag)
	})

	t.Run("Tags of other branches are not reachable", func(t *testing.T) {
		repo := testRepoCreate(t)
		testCommit(t, repo, "a.txt", "a")
		testCheckout(t, repo, "release/2.0", true)
		testCheckout(t, repo, "other", true)
		other := testCommit(t, repo, "other.txt", "other")
		testTag(t, repo, "2.0.9", other, "")
		testCheckout(t, repo, "release/2.0", false)
		release := testCommit(t, repo, "b.txt", "b")
		testTag(t, repo, "2.0.1", release, "")
		testCommit(t, repo, "c.txt", "c")

		snap := snapshotOf(t, repo, SnapshotOptions{})
		require.Equal(t, "release/2.0", snap.Branch)
		require.Equal(t, []string{"2.0.1"}, snap.Tags)
		require.Equal(t, "2.0.1", snap.LastMatchingTag)

		info, err := Resolve(snap, DefaultOptions())
		require.NoError(t, err)
		require.Equal(t, "2.0.2", info.Display)
	})

	t.Run("Last tag pattern", func(t *testing.T) {
		repo := testRepoCreate(t)
		first := testCommit(t, repo, "a.txt", "a")
		testTag(t, repo, "v10", first, "")
		second := testCommit(t, repo, "b.txt", "b")
		testTag(t, repo, "build-2", second, "")

		snap := snapshotOf(t, repo, SnapshotOptions{})
		require.Equal(t, "v10", snap.LastMatchingTag)

		snap = snapshotOf(t, repo, SnapshotOptions{LastTagPattern: `^build-(\d+)$`})
		require.Equal(t, "build-2", snap.LastMatchingTag)

		_, err := NewGitRepository(repo).Snapshot(context.Background(), SnapshotOptions{LastTagPattern: "("})
		require.Error(t, err)
	})

	t.Run("Detached HEAD", func(t *testing.T) {
		repo := testRepoCreate(t)
		first := testCommit(t, repo, "a.txt", "a")
		testCommit(t, repo, "b.txt", "b")

		workTree, err := repo.Worktree()
		require.NoError(t, err)
		require.NoError(t, workTree.Checkout(&git.CheckoutOptions{Hash: first}))

		snap := snapshotOf(t, repo, SnapshotOptions{})
		require.Equal(t, "HEAD", snap.Branch)
		require.Equal(t, first.String(), snap.Commit)
	})

	t.Run("Branch from the environment", func(t *testing.T) {
		repo := testRepoCreate(t)
		testCommit(t, repo, "a.txt", "a")

		env := map[string]string{"BRANCH_NAME": "feature/456-cute", "EMPTY": ""}
		lookup := func(name string) (string, bool) {
			v, ok := env[name]
			return v, ok
		}

		snap := snapshotOf(t, repo, SnapshotOptions{
			BranchEnv: []string{"UNSET", "EMPTY", "BRANCH_NAME"},
			LookupEnv: lookup,
		})
		require.Equal(t, "feature/456-cute", snap.Branch)

		snap = snapshotOf(t, repo, SnapshotOptions{BranchEnv: []string{"UNSET"}, LookupEnv: lookup})
		require.Equal(t, "master", snap.Branch)
	})

	t.Run("Shallow history", func(t *testing.T) {
		repo := testRepoCreate(t)
		testCommit(t, repo, "a.txt", "a")
		head := testCommit(t, repo, "b.txt", "b")

		require.False(t, snapshotOf(t, repo, SnapshotOptions{}).Shallow)

		require.NoError(t, repo.Storer.SetShallow([]plumbing.Hash{head}))
		require.True(t, snapshotOf(t, repo, SnapshotOptions{}).Shallow)
	})

	t.Run("Cancelled walk", func(t *testing.T) {
		repo := testRepoCreate(t)
		hash := testCommit(t, repo, "a.txt", "a")
		testTag(t, repo, "1.0.0", hash, "")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewGitRepository(repo).Snapshot(ctx, SnapshotOptions{})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestSnapshotDirty(t *testing.T) {
	repo := testRepoCreate(t)
	testCommit(t, repo, "test.txt", "Hello world")

	workTree, err := repo.Worktree()
	require.NoError(t, err)

	t.Run("Working tree is clean", func(t *testing.T) {
		snap := snapshotOf(t, repo, SnapshotOptions{})
		require.False(t, snap.Dirty)
		require.Zero(t, snap.Status.Len())
	})

	t.Run("Untracked files are not changes", func(t *testing.T) {
		require.NoError(t, writeFile(workTree.Filesystem, "untracked.txt", "new"))

		snap := snapshotOf(t, repo, SnapshotOptions{})
		require.False(t, snap.Dirty)
	})

	t.Run("Modified file", func(t *testing.T) {
		require.NoError(t, writeFile(workTree.Filesystem, "test.txt", "Hello world 2"))

		snap := snapshotOf(t, repo, SnapshotOptions{})
		require.True(t, snap.Dirty)
		require.Equal(t, []string{"test.txt"}, snap.Status.Unstaged)
		require.Empty(t, snap.Status.Staged)
	})

	t.Run("Staged file", func(t *testing.T) {
		addFile(t, workTree, "staged.txt", "staged")

		snap := snapshotOf(t, repo, SnapshotOptions{})
		require.True(t, snap.Dirty)
		require.Equal(t, []string{"staged.txt"}, snap.Status.Staged)
		require.Equal(t, []string{"test.txt"}, snap.Status.Unstaged)
	})
}

func TestGitGateway(t *testing.T) {
	t.Run("Non-git directory", func(t *testing.T) {
		dir := t.TempDir()

		gateway := GitGateway{}
		require.False(t, gateway.HasRepository(dir))

		_, err := gateway.Open(dir)
		require.ErrorIs(t, err, ErrNoRepository)
	})

	t.Run("Repository without commits", func(t *testing.T) {
		dir := t.TempDir()
		_, err := git.PlainInit(dir, false)
		require.NoError(t, err)

		gateway := GitGateway{}
		require.True(t, gateway.HasRepository(dir))

		repo, err := gateway.Open(dir)
		require.NoError(t, err)
		defer repo.Close()

		_, err = repo.Snapshot(context.Background(), SnapshotOptions{})
		require.True(t, errors.Is(err, ErrNoCommits))
	})

	t.Run("Repository on disk", func(t *testing.T) {
		dir := t.TempDir()
		repo := testRepoFSCreate(t, dir)
		hash := testCommit(t, repo, "test.txt", "Hello world")
		testCheckout(t, repo, "release/1.4", true)

		opened, err := GitGateway{}.Open(dir)
		require.NoError(t, err)

		snap, err := opened.Snapshot(context.Background(), SnapshotOptions{})
		require.NoError(t, err)
		require.NoError(t, opened.Close())

		require.Equal(t, "release/1.4", snap.Branch)
		require.Equal(t, hash.String(), snap.Commit)
		require.False(t, snap.Dirty)
	})
}
