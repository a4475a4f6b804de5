package branchver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoRepository is returned when no git repository can be found at or above the root.
	ErrNoRepository = errors.New("no git repository found")

	// ErrNoCommits is returned when the repository has no commit to version.
	ErrNoCommits = errors.New("no commit available in the repository - cannot compute version")
)

// DirtyError aborts resolution when the working copy of a release branch is
// dirty and Options.DirtyFailOnReleases is set.
type DirtyError struct {
	Branch string
	Status FileStatus
}

func (e *DirtyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dirty working copy on release branch %q", e.Branch)
	if n := e.Status.Len(); n > 0 {
		fmt.Fprintf(&b, " (%d changed files)", n)
	}
	return b.String()
}

// TagPatternError reports a tag pattern that cannot yield a numeric sort key.
type TagPatternError struct {
	Pattern string
	Tag     string
	Reason  string
}

func (e *TagPatternError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("tag pattern %q: %s", e.Pattern, e.Reason)
	}
	return fmt.Sprintf("tag pattern %q on tag %q: %s", e.Pattern, e.Tag, e.Reason)
}

// NumberOverflowError is returned when a numeric version component does not
// fit into an int.
type NumberOverflowError struct {
	Value string
}

func (e *NumberOverflowError) Error() string {
	return fmt.Sprintf("version number %q is out of range", e.Value)
}
