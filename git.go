// Package branchver computes build versions from the branch name, tag
// history and commit metadata of a git checkout.
//
// This file contains code adapted from pulumictl (https://github.com/pulumi/pulumictl)
// which is licensed under the Apache License 2.0. See NOTICE file for full attribution.
package branchver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// DefaultAbbrevLength is the length of abbreviated commits.
const DefaultAbbrevLength = 7

// Gateway gives access to the repositories versions are computed from.
type Gateway interface {
	HasRepository(root string) bool
	Open(root string) (Repository, error)
}

// Repository captures snapshots of an opened repository. Close must be
// called once done.
type Repository interface {
	Snapshot(ctx context.Context, opts SnapshotOptions) (*RepositorySnapshot, error)
	Close() error
}

// SnapshotOptions configures what a snapshot looks at.
type SnapshotOptions struct {
	// BranchEnv lists environment variables overriding the branch name.
	BranchEnv []string
	// LookupEnv reads the environment, os.LookupEnv when nil.
	LookupEnv func(string) (string, bool)
	// LastTagPattern selects LastMatchingTag, DefaultLastTagPattern when
	// empty.
	LastTagPattern string
	// AbbrevLength is DefaultAbbrevLength when not positive.
	AbbrevLength int
}

// GitGateway is the go-git backed Gateway.
type GitGateway struct{}

// HasRepository reports whether root is inside a git repository.
func (GitGateway) HasRepository(root string) bool {
	_, err := OpenRepository(root)
	return err == nil
}

// Open opens the repository holding root.
func (GitGateway) Open(root string) (Repository, error) {
	repo, err := OpenRepository(root)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNoRepository, root)
		}
		return nil, fmt.Errorf("opening repository %s: %w", root, err)
	}
	return NewGitRepository(repo), nil
}

// OpenRepository opens a Git repository at the specified path, looking for
// the .git directory in the parents too.
func OpenRepository(path string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
}

// GitRepository implements Repository on a go-git repository.
type GitRepository struct {
	repo *git.Repository
}

// NewGitRepository wraps an opened go-git repository.
func NewGitRepository(repo *git.Repository) *GitRepository {
	return &GitRepository{repo: repo}
}

// Close releases the files held by filesystem storage.
func (r *GitRepository) Close() error {
	if c, ok := r.repo.Storer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Snapshot captures branch, commit, tags and working copy state of HEAD.
func (r *GitRepository) Snapshot(ctx context.Context, opts SnapshotOptions) (*RepositorySnapshot, error) {
	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, ErrNoCommits
		}
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("getting commit object: %w", err)
	}

	shallow, err := r.isShallow(commit)
	if err != nil {
		return nil, fmt.Errorf("checking shallow history: %w", err)
	}

	tagRefs, err := r.tagsByCommit()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	branch := branchName(head, opts)
	tip, err := r.branchTip(branch, commit)
	if err != nil {
		return nil, fmt.Errorf("resolving branch %s: %w", branch, err)
	}

	reachable, err := reachableTags(ctx, tip, tagRefs)
	if err != nil {
		return nil, fmt.Errorf("walking tags of %s: %w", branch, err)
	}

	patternText := opts.LastTagPattern
	if patternText == "" {
		patternText = DefaultLastTagPattern
	}
	pattern, err := regexp.Compile(patternText)
	if err != nil {
		return nil, fmt.Errorf("invalid last tag pattern: %w", err)
	}
	lastTag, _, err := LastMatchingTag(pattern, reachable)
	if err != nil {
		return nil, err
	}

	status, err := r.status()
	if err != nil {
		return nil, fmt.Errorf("checking if worktree is dirty: %w", err)
	}

	abbrev := opts.AbbrevLength
	if abbrev <= 0 {
		abbrev = DefaultAbbrevLength
	}
	hash := commit.Hash.String()

	return &RepositorySnapshot{
		Branch:          branch,
		Commit:          hash,
		CommitAbbrev:    hash[:min(abbrev, len(hash))],
		CommitTime:      commit.Committer.When,
		CurrentTag:      currentTag(tagRefs, commit.Hash),
		LastMatchingTag: lastTag,
		Tags:            WithTagEquivalents(reachable),
		Dirty:           status.Len() > 0,
		Shallow:         shallow,
		Status:          status,
	}, nil
}

// branchName prefers the first set override variable, then the checked out
// branch, then "HEAD" for a detached checkout.
func branchName(head *plumbing.Reference, opts SnapshotOptions) string {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range opts.BranchEnv {
		if value, ok := lookup(name); ok && value != "" {
			return value
		}
	}
	if head.Name().IsBranch() {
		return head.Name().Short()
	}
	return plumbing.HEAD.String()
}

// branchTip is the commit the local branch points to, HEAD when the name
// is not a local branch (detached or overridden from the environment).
func (r *GitRepository) branchTip(branch string, head *object.Commit) (*object.Commit, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return head, nil
	}
	if ref.Hash() == head.Hash {
		return head, nil
	}
	return r.repo.CommitObject(ref.Hash())
}

// isShallow reports a history that cannot be walked past HEAD: either a
// root commit or a commit recorded in the shallow file.
func (r *GitRepository) isShallow(commit *object.Commit) (bool, error) {
	if commit.NumParents() == 0 {
		return true, nil
	}
	shallow, err := r.repo.Storer.Shallow()
	if err != nil {
		return false, err
	}
	return slices.Contains(shallow, commit.Hash), nil
}

// tagsByCommit maps commits to the names of the tags pointing at them,
// peeling annotated tags. Names are sorted.
func (r *GitRepository) tagsByCommit() (map[plumbing.Hash][]string, error) {
	tags, err := r.repo.Tags()
	if err != nil {
		return nil, err
	}

	refs := make(map[plumbing.Hash][]string)
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}

		target := ref.Hash()
		obj, err := r.repo.TagObject(ref.Hash())
		switch err {
		case nil:
			// Annotated tag
			target = obj.Target
		case plumbing.ErrObjectNotFound:
			// Lightweight tag
		default:
			return err
		}

		refs[target] = append(refs[target], ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, names := range refs {
		sort.Strings(names)
	}
	return refs, nil
}

// currentTag is the tag sitting exactly on HEAD, as a describe with zero
// commits since the tag would report it.
func currentTag(tagRefs map[plumbing.Hash][]string, head plumbing.Hash) string {
	names := tagRefs[head]
	if len(names) == 0 {
		return ""
	}
	return names[len(names)-1]
}

// reachableTags walks the history from tip, newest commit first, and
// collects the tags met on the way.
func reachableTags(ctx context.Context, tip *object.Commit, tagRefs map[plumbing.Hash][]string) ([]string, error) {
	if len(tagRefs) == 0 {
		return nil, nil
	}

	var names []string
	walker := object.NewCommitIterCTime(tip, nil, nil)
	defer walker.Close()

	err := walker.ForEach(func(c *object.Commit) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		names = append(names, tagRefs[c.Hash]...)
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) && !errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, err
	}
	return names, nil
}

// status lists staged, unstaged and conflicting paths. Untracked files and
// files matched by an ignore rule are not changes.
func (r *GitRepository) status() (FileStatus, error) {
	workTree, err := r.repo.Worktree()
	if errors.Is(err, git.ErrIsBareRepository) {
		return FileStatus{}, nil
	}
	if err != nil {
		return FileStatus{}, fmt.Errorf("getting worktree: %w", err)
	}

	st, err := workTree.Status()
	if err != nil {
		return FileStatus{}, fmt.Errorf("getting git status: %w", err)
	}

	var fs FileStatus
	for path, s := range st {
		if s.Staging == git.UpdatedButUnmerged || s.Worktree == git.UpdatedButUnmerged {
			fs.Conflicts = append(fs.Conflicts, path)
			continue
		}
		if s.Staging != git.Unmodified && s.Staging != git.Untracked {
			fs.Staged = append(fs.Staged, path)
		}
		if s.Worktree != git.Unmodified && s.Worktree != git.Untracked {
			fs.Unstaged = append(fs.Unstaged, path)
		}
	}
	sort.Strings(fs.Staged)
	sort.Strings(fs.Unstaged)
	sort.Strings(fs.Conflicts)
	return fs, nil
}
