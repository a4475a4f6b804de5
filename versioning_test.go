package branchver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu        sync.Mutex
	missing   bool
	openErr   error
	snap      *RepositorySnapshot
	snapErr   error
	snapshots int
	closed    int
	options   SnapshotOptions
}

func (g *fakeGateway) HasRepository(string) bool { return !g.missing }

func (g *fakeGateway) Open(string) (Repository, error) {
	if g.openErr != nil {
		return nil, g.openErr
	}
	return fakeRepository{g}, nil
}

type fakeRepository struct{ g *fakeGateway }

func (r fakeRepository) Snapshot(_ context.Context, opts SnapshotOptions) (*RepositorySnapshot, error) {
	r.g.mu.Lock()
	defer r.g.mu.Unlock()
	r.g.snapshots++
	r.g.options = opts
	return r.g.snap, r.g.snapErr
}

func (r fakeRepository) Close() error {
	r.g.mu.Lock()
	defer r.g.mu.Unlock()
	r.g.closed++
	return nil
}

func TestVersioning(t *testing.T) {
	ctx := context.Background()

	t.Run("Computes once", func(t *testing.T) {
		gateway := &fakeGateway{snap: testSnapshot("release/2.0", "2.0.2")}
		v := New(".", DefaultOptions(), gateway)

		first, err := v.Info(ctx)
		require.NoError(t, err)
		require.Equal(t, "2.0.3", first.Display)

		second, err := v.Info(ctx)
		require.NoError(t, err)
		require.Same(t, first, second)
		require.Equal(t, 1, gateway.snapshots)
		require.Equal(t, 1, gateway.closed)
	})

	t.Run("Configure drops the cached version", func(t *testing.T) {
		gateway := &fakeGateway{snap: testSnapshot("release/2.0", "2.0.2")}
		v := New(".", DefaultOptions(), gateway)

		_, err := v.Info(ctx)
		require.NoError(t, err)

		v.Configure(func(o *Options) {
			o.ReleaseMode = ReleaseSnapshot
			o.BranchEnv = []string{"BRANCH_NAME"}
		})
		require.Equal(t, ReleaseSnapshot, v.Options().ReleaseMode)

		info, err := v.Info(ctx)
		require.NoError(t, err)
		require.Equal(t, "2.0.3-SNAPSHOT", info.Display)
		require.Equal(t, 2, gateway.snapshots)
		require.Equal(t, []string{"BRANCH_NAME"}, gateway.options.BranchEnv)
		require.Equal(t, DefaultAbbrevLength, gateway.options.AbbrevLength)
	})

	t.Run("Options are copies", func(t *testing.T) {
		gateway := &fakeGateway{snap: testSnapshot("hotfix/2.0", "2.0.2")}
		opts := DefaultOptions()
		opts.BranchEnv = []string{"BRANCH_NAME"}
		v := New(".", opts, gateway)

		first, err := v.Info(ctx)
		require.NoError(t, err)

		got := v.Options()
		got.Releases[0] = "hotfix"
		got.Trunks[0] = "develop"
		got.BranchEnv[0] = "GIT_BRANCH"

		require.Equal(t, DefaultOptions().Releases, v.Options().Releases)
		require.Equal(t, DefaultOptions().Trunks, v.Options().Trunks)
		require.Equal(t, []string{"BRANCH_NAME"}, v.Options().BranchEnv)

		second, err := v.Info(ctx)
		require.NoError(t, err)
		require.Same(t, first, second)
		require.Equal(t, 1, gateway.snapshots)
	})

	t.Run("Invalidate", func(t *testing.T) {
		gateway := &fakeGateway{snap: testSnapshot("main")}
		v := New(".", DefaultOptions(), gateway)

		_, err := v.Info(ctx)
		require.NoError(t, err)
		v.Invalidate()
		_, err = v.Info(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, gateway.snapshots)
	})

	t.Run("No repository", func(t *testing.T) {
		gateway := &fakeGateway{missing: true}
		info, err := New(".", DefaultOptions(), gateway).Info(ctx)
		require.NoError(t, err)
		require.True(t, info.IsEmpty())
		require.Zero(t, gateway.snapshots)
	})

	t.Run("Errors are not cached", func(t *testing.T) {
		gateway := &fakeGateway{snapErr: ErrNoCommits}
		v := New(".", DefaultOptions(), gateway)

		_, err := v.Info(ctx)
		require.ErrorIs(t, err, ErrNoCommits)
		require.Equal(t, 1, gateway.closed)

		gateway.snapErr = nil
		gateway.snap = testSnapshot("main")
		info, err := v.Info(ctx)
		require.NoError(t, err)
		require.Equal(t, "main-sha-0123456", info.Display)
	})

	t.Run("Open error", func(t *testing.T) {
		openErr := errors.New("boom")
		_, err := New(".", DefaultOptions(), &fakeGateway{openErr: openErr}).Info(ctx)
		require.ErrorIs(t, err, openErr)
	})

	t.Run("Concurrent callers", func(t *testing.T) {
		gateway := &fakeGateway{snap: testSnapshot("release/2.0")}
		v := New(".", DefaultOptions(), gateway)

		var wg sync.WaitGroup
		results := make([]*VersionInfo, 8)
		for i := range results {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], _ = v.Info(ctx)
			}()
		}
		wg.Wait()

		for _, info := range results {
			require.NotNil(t, info)
			require.Equal(t, "2.0.0", info.Display)
		}
		require.Equal(t, 1, gateway.snapshots)
	})
}

func TestCalculate(t *testing.T) {
	t.Run("Non-git directory", func(t *testing.T) {
		info, err := Calculate(context.Background(), t.TempDir(), DefaultOptions())
		require.NoError(t, err)
		require.True(t, info.IsEmpty())
	})

	t.Run("Repository on disk", func(t *testing.T) {
		dir := t.TempDir()
		repo := testRepoFSCreate(t, dir)
		testCommit(t, repo, "a.txt", "a")
		testCheckout(t, repo, "release/2.0", true)
		hash := testCommit(t, repo, "b.txt", "b")
		testTag(t, repo, "2.0.4", hash, "Release 2.0.4")
		testCommit(t, repo, "c.txt", "c")

		info, err := Calculate(context.Background(), dir, DefaultOptions())
		require.NoError(t, err)
		require.Equal(t, "2.0.5", info.Display)
		require.Equal(t, "2.0.4", info.LastTag)
		require.Equal(t, "release", info.BranchType)
	})
}
