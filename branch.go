package branchver

import (
	"regexp"
	"strings"
)

// DefaultSeparator splits a branch name into its type and version base.
const DefaultSeparator = "/"

var normalizePattern = regexp.MustCompile(`[^A-Za-z0-9.\-_]`)

// ReleaseInfo is the classification of a branch name.
type ReleaseInfo struct {
	// BranchType is the part before the separator, e.g. "release".
	BranchType string `json:"branchType"`
	// VersionBase is the part after the separator, e.g. "2.0". Empty when
	// the branch name holds no separator.
	VersionBase string `json:"versionBase"`
}

// FromBranch splits branch once on separator ("/" when empty).
//
//	release/2.0     -> {release 2.0}
//	feature/a/b     -> {feature a/b}
//	main            -> {main ""}
func FromBranch(branch, separator string) ReleaseInfo {
	if separator == "" {
		separator = DefaultSeparator
	}
	branchType, versionBase, _ := strings.Cut(branch, separator)
	return ReleaseInfo{BranchType: branchType, VersionBase: versionBase}
}

// NormalizeBranch turns a branch name into an identifier usable in file
// names and versions: "feature/123 great" becomes "feature-123-great".
func NormalizeBranch(branch string) string {
	return normalizePattern.ReplaceAllString(branch, "-")
}

// Classifier decides the type and version base of a branch.
type Classifier interface {
	Classify(branch, separator string) ReleaseInfo
}

// ClassifierFunc adapts a function to a Classifier.
type ClassifierFunc func(branch, separator string) ReleaseInfo

func (f ClassifierFunc) Classify(branch, separator string) ReleaseInfo {
	return f(branch, separator)
}

// SeparatorClassifier is the default Classifier, see FromBranch.
type SeparatorClassifier struct{}

func (SeparatorClassifier) Classify(branch, separator string) ReleaseInfo {
	return FromBranch(branch, separator)
}
