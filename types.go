// Package branchver computes build versions from the branch name, tag
// history and commit metadata of a git checkout.
//
// This file contains code adapted from pulumictl (https://github.com/pulumi/pulumictl)
// which is licensed under the Apache License 2.0. See NOTICE file for full attribution.
package branchver

import (
	"strings"
	"time"

	"github.com/blang/semver"
)

// RepositorySnapshot is the state of the repository captured once per
// resolution.
type RepositorySnapshot struct {
	// Branch is the current branch, or "HEAD" when detached.
	Branch       string
	Commit       string
	CommitAbbrev string
	// CommitTime is the zero time when unknown.
	CommitTime time.Time

	// CurrentTag is set only when HEAD is exactly on a tag.
	CurrentTag string
	// LastMatchingTag is the reachable tag with the highest number captured
	// by Options.LastTagPattern.
	LastMatchingTag string
	// Tags are the reachable tag names, newest commit first, with their
	// equivalents (see WithTagEquivalents).
	Tags []string

	Dirty   bool
	Shallow bool
	Status  FileStatus
}

// FileStatus groups the changed paths of the working copy.
type FileStatus struct {
	Staged    []string `json:"staged,omitempty"`
	Unstaged  []string `json:"unstaged,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// Len returns the number of listed paths.
func (s FileStatus) Len() int {
	return len(s.Staged) + len(s.Unstaged) + len(s.Conflicts)
}

// VersionNumber is the numeric view of the computed version.
type VersionNumber struct {
	Major         int    `json:"major"`
	Minor         int    `json:"minor"`
	Patch         int    `json:"patch"`
	Qualifier     string `json:"qualifier"`
	VersionCode   int    `json:"versionCode"`
	VersionString string `json:"versionString"`
}

// VersionInfo is the result of a resolution.
type VersionInfo struct {
	Scm        string `json:"scm"`
	Branch     string `json:"branch"`
	BranchType string `json:"branchType"`
	BranchID   string `json:"branchId"`
	Commit     string `json:"commit"`
	// Build is the abbreviated commit.
	Build   string `json:"build"`
	Time    string `json:"time,omitempty"`
	Tag     string `json:"tag,omitempty"`
	LastTag string `json:"lastTag,omitempty"`
	Dirty   bool   `json:"dirty"`
	Shallow bool   `json:"shallow"`
	// Base is the version base the display was computed from, empty for
	// branches that are not auto-versioned.
	Base string `json:"base"`
	// Full is unique per branch and commit.
	Full          string        `json:"full"`
	Display       string        `json:"display"`
	VersionNumber VersionNumber `json:"versionNumber"`
}

// EmptyVersionInfo is returned when there is no repository to look at.
func EmptyVersionInfo() *VersionInfo {
	return &VersionInfo{Scm: "n/a"}
}

// IsEmpty reports whether no version could be computed.
func (v *VersionInfo) IsEmpty() bool {
	return v == nil || v.Scm == "n/a"
}

// Semver converts the version number to a strict semantic version. Qualifier
// parts that are not valid semver identifiers are dropped.
func (v *VersionInfo) Semver() semver.Version {
	n := v.VersionNumber
	sv := semver.Version{
		Major: uint64(max(n.Major, 0)),
		Minor: uint64(max(n.Minor, 0)),
		Patch: uint64(max(n.Patch, 0)),
	}

	pre, build, _ := strings.Cut(n.Qualifier, "+")
	if strings.HasPrefix(pre, "-") {
		for _, id := range strings.Split(pre[1:], ".") {
			prv, err := semver.NewPRVersion(id)
			if err != nil {
				continue
			}
			sv.Pre = append(sv.Pre, prv)
		}
	}
	if build != "" {
		for _, id := range strings.Split(build, ".") {
			b, err := semver.NewBuildVersion(id)
			if err != nil {
				continue
			}
			sv.Build = append(sv.Build, b)
		}
	}
	return sv
}
