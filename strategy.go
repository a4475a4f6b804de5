package branchver

import (
	"fmt"
	"strings"
)

// ReleaseContext is what a ReleaseMode sees when a version base is known and
// the full history is available.
type ReleaseContext struct {
	// NextTag is the computed next version, e.g. "2.0.3".
	NextTag string
	// LastTag is the tag NextTag was derived from, empty if none.
	LastTag string
	// CurrentTag is the tag at HEAD, empty if none.
	CurrentTag string
	// SnapshotSuffix is Options.SnapshotSuffix.
	SnapshotSuffix string
}

// ReleaseMode computes the version of a branch with a version base.
type ReleaseMode interface {
	ReleaseVersion(ReleaseContext) string
}

// ReleaseModeFunc adapts a function to a ReleaseMode.
type ReleaseModeFunc func(ReleaseContext) string

func (f ReleaseModeFunc) ReleaseVersion(c ReleaseContext) string { return f(c) }

type releaseMode int

const (
	// ReleaseTag versions every build with the next tag.
	ReleaseTag releaseMode = iota
	// ReleaseSnapshot uses the current tag when HEAD is tagged and the next
	// tag with the snapshot suffix otherwise.
	ReleaseSnapshot
)

func (m releaseMode) ReleaseVersion(c ReleaseContext) string {
	if m == ReleaseSnapshot {
		if c.CurrentTag != "" {
			return c.CurrentTag
		}
		return c.NextTag + c.SnapshotSuffix
	}
	return c.NextTag
}

func (m releaseMode) String() string {
	if m == ReleaseSnapshot {
		return "snapshot"
	}
	return "tag"
}

// ParseReleaseMode resolves "tag" or "snapshot".
func ParseReleaseMode(name string) (ReleaseMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "tag":
		return ReleaseTag, nil
	case "snapshot":
		return ReleaseSnapshot, nil
	default:
		return nil, fmt.Errorf("unknown release mode %q", name)
	}
}

// DisplayContext is what a DisplayMode sees for a branch without version
// base and without any previous tag.
type DisplayContext struct {
	BranchType string
	BranchID   string
	// BranchBase is the version base of the branch name, or the branch id
	// when the name has none.
	BranchBase     string
	CommitAbbrev   string
	Full           string
	SnapshotSuffix string
}

// DisplayMode computes the display version of a branch without version base.
type DisplayMode interface {
	DisplayVersion(DisplayContext) string
}

// DisplayModeFunc adapts a function to a DisplayMode.
type DisplayModeFunc func(DisplayContext) string

func (f DisplayModeFunc) DisplayVersion(c DisplayContext) string { return f(c) }

type displayMode int

const (
	// DisplayFull displays the full version, branch id and commit.
	DisplayFull displayMode = iota
	// DisplaySnapshot displays the branch base with the snapshot suffix.
	DisplaySnapshot
	// DisplayBase displays the branch base.
	DisplayBase
)

func (m displayMode) DisplayVersion(c DisplayContext) string {
	switch m {
	case DisplaySnapshot:
		return c.BranchBase + c.SnapshotSuffix
	case DisplayBase:
		return c.BranchBase
	default:
		return c.Full
	}
}

func (m displayMode) String() string {
	switch m {
	case DisplaySnapshot:
		return "snapshot"
	case DisplayBase:
		return "base"
	default:
		return "full"
	}
}

// ParseDisplayMode resolves "full", "snapshot" or "base".
func ParseDisplayMode(name string) (DisplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "full":
		return DisplayFull, nil
	case "snapshot":
		return DisplaySnapshot, nil
	case "base":
		return DisplayBase, nil
	default:
		return nil, fmt.Errorf("unknown display mode %q", name)
	}
}
