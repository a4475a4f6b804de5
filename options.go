package branchver

import (
	"slices"

	"github.com/rs/zerolog"
)

// Defaults for Options.
const (
	DefaultDirtySuffix    = "-dirty"
	DefaultSnapshotSuffix = "-SNAPSHOT"
	DefaultPrecision      = 2

	// PreReleasePrefix starts the commit qualifier of branches that are not
	// auto-versioned. It holds no "." since that separates pre-release
	// identifiers.
	PreReleasePrefix = "sha-"
)

// Options configures version resolution.
type Options struct {
	// Separator splits the branch name into type and version base.
	Separator string

	// Releases are the branch types taking their version base from the
	// branch name, e.g. release/2.0.
	Releases []string

	// Trunks are the branch types versioned from BaseVersion.
	Trunks []string

	// BaseVersion is the version base of trunk branches and of release
	// branches whose name carries none.
	BaseVersion string

	// DirtySuffix is appended to full and display versions of a dirty
	// working copy. Empty appends nothing.
	DirtySuffix string

	// DirtyFailOnReleases aborts resolution with a *DirtyError when a
	// release branch is dirty.
	DirtyFailOnReleases bool

	// NoWarningOnDirty silences the dirty working copy warning.
	NoWarningOnDirty bool

	// DirtyStatusLog logs the changed files of a dirty working copy.
	DirtyStatusLog bool

	// SnapshotSuffix is used by shallow checkouts and the snapshot modes.
	SnapshotSuffix string

	// Precision is the number of digits per component in the version code.
	Precision int

	// BuildNumberMode versions every build from ProjectVersion and
	// BuildNumber instead of the tag history.
	BuildNumberMode bool

	// BuildNumber is supplied by the build system, e.g. $BUILD_NUMBER.
	BuildNumber string

	// ProjectVersion is the version declared by the project, used as base in
	// BuildNumberMode.
	ProjectVersion string

	// LastTagPattern selects the last tag; its first group must capture a
	// number.
	LastTagPattern string

	// BranchEnv lists environment variables overriding the branch name, the
	// first one set wins.
	BranchEnv []string

	// AbbrevLength is the length of the abbreviated commit.
	AbbrevLength int

	ReleaseMode ReleaseMode
	DisplayMode DisplayMode
	Classifier  Classifier

	// Logger receives warnings; nil disables logging.
	Logger *zerolog.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Separator:      DefaultSeparator,
		Releases:       []string{"release", "pre"},
		Trunks:         []string{"main"},
		DirtySuffix:    DefaultDirtySuffix,
		SnapshotSuffix: DefaultSnapshotSuffix,
		Precision:      DefaultPrecision,
		LastTagPattern: DefaultLastTagPattern,
		AbbrevLength:   DefaultAbbrevLength,
		ReleaseMode:    ReleaseTag,
		DisplayMode:    DisplayFull,
		Classifier:     SeparatorClassifier{},
	}
}

// withDefaults fills the unset fields that have no meaningful zero value.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Separator == "" {
		o.Separator = d.Separator
	}
	if o.Releases == nil {
		o.Releases = d.Releases
	}
	if o.Trunks == nil {
		o.Trunks = d.Trunks
	}
	if o.SnapshotSuffix == "" {
		o.SnapshotSuffix = d.SnapshotSuffix
	}
	if o.Precision <= 0 {
		o.Precision = d.Precision
	}
	if o.LastTagPattern == "" {
		o.LastTagPattern = d.LastTagPattern
	}
	if o.AbbrevLength <= 0 {
		o.AbbrevLength = d.AbbrevLength
	}
	if o.ReleaseMode == nil {
		o.ReleaseMode = d.ReleaseMode
	}
	if o.DisplayMode == nil {
		o.DisplayMode = d.DisplayMode
	}
	if o.Classifier == nil {
		o.Classifier = d.Classifier
	}
	return o
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

func (o Options) isRelease(branchType string) bool {
	return slices.Contains(o.Releases, branchType)
}

func (o Options) isTrunk(branchType string) bool {
	return slices.Contains(o.Trunks, branchType)
}
