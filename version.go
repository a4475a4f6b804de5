package branchver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Resolve computes the version of a repository snapshot. It is a pure
// function of its inputs: the same snapshot and options always give the same
// VersionInfo.
//
// Branches are handled in this order:
//   - no version base: the last matching tag qualified with the commit, or
//     the display mode (full version by default) when there is no tag
//   - shallow history: the tag at HEAD, or the version base as a snapshot
//   - otherwise: the version base followed by the next tag number
func Resolve(snap *RepositorySnapshot, opts Options) (*VersionInfo, error) {
	if snap == nil {
		return EmptyVersionInfo(), nil
	}
	opts = opts.withDefaults()
	log := opts.logger()

	release := opts.Classifier.Classify(snap.Branch, opts.Separator)
	branchID := NormalizeBranch(snap.Branch)
	isRelease := opts.isRelease(release.BranchType)

	var dirtySuffix string
	if snap.Dirty {
		if opts.DirtyStatusLog {
			log.Warn().
				Strs("staged", snap.Status.Staged).
				Strs("unstaged", snap.Status.Unstaged).
				Strs("conflicts", snap.Status.Conflicts).
				Msg("git status of the working copy")
		}
		if opts.DirtyFailOnReleases && isRelease {
			return nil, &DirtyError{Branch: snap.Branch, Status: snap.Status}
		}
		if !opts.NoWarningOnDirty {
			log.Warn().Str("branch", snap.Branch).Msg("the working copy has un-staged or un-committed changes")
		}
		dirtySuffix = opts.DirtySuffix
	}

	base, err := versionBase(release, opts)
	if err != nil {
		return nil, err
	}

	r := resolution{
		snap:        snap,
		opts:        opts,
		release:     release,
		branchID:    branchID,
		isRelease:   isRelease,
		base:        base,
		full:        branchID + "-" + PreReleasePrefix + snap.CommitAbbrev,
		dirtySuffix: dirtySuffix,
		lastTag:     snap.LastMatchingTag,
	}

	switch {
	case base == "":
		err = r.unversioned()
	case snap.Shallow:
		err = r.shallow()
	default:
		err = r.fromTags()
	}
	if err != nil {
		return nil, err
	}

	info := &VersionInfo{
		Scm:           "git",
		Branch:        snap.Branch,
		BranchType:    release.BranchType,
		BranchID:      branchID,
		Commit:        snap.Commit,
		Build:         snap.CommitAbbrev,
		Time:          formatTime(snap.CommitTime),
		Tag:           snap.CurrentTag,
		LastTag:       r.lastTag,
		Dirty:         snap.Dirty,
		Shallow:       snap.Shallow,
		Base:          base,
		Full:          r.full + dirtySuffix,
		Display:       r.display,
		VersionNumber: newVersionNumber(r.semantic, opts.Precision),
	}

	log.Debug().
		Str("branch", info.Branch).
		Str("base", info.Base).
		Str("display", info.Display).
		Msg("resolved version")

	return info, nil
}

// versionBase picks the base the version is computed from. An empty base
// means the branch is not auto-versioned.
func versionBase(release ReleaseInfo, opts Options) (string, error) {
	if opts.BuildNumberMode {
		project, err := ParseVersion(opts.ProjectVersion)
		if err != nil {
			return "", fmt.Errorf("parsing project version: %w", err)
		}
		if project.HasMajor() {
			return project.WithClearedQualifier().Relaxed(), nil
		}
	}

	isRelease := opts.isRelease(release.BranchType)
	switch {
	case isRelease && release.VersionBase != "":
		return release.VersionBase, nil
	case isRelease || opts.isTrunk(release.BranchType):
		return strings.TrimSpace(opts.BaseVersion), nil
	default:
		return "", nil
	}
}

type resolution struct {
	snap      *RepositorySnapshot
	opts      Options
	release   ReleaseInfo
	branchID  string
	isRelease bool
	base      string
	full      string

	dirtySuffix string
	lastTag     string

	display  string
	semantic RelaxedVersion
}

// unversioned handles branches without version base.
func (r *resolution) unversioned() error {
	qualifier := PreReleasePrefix + r.snap.CommitAbbrev + r.dirtySuffix

	if r.lastTag == "" {
		branchBase := r.release.VersionBase
		if branchBase == "" {
			branchBase = r.branchID
		}
		r.display = r.opts.DisplayMode.DisplayVersion(DisplayContext{
			BranchType:     r.release.BranchType,
			BranchID:       r.branchID,
			BranchBase:     branchBase,
			CommitAbbrev:   r.snap.CommitAbbrev,
			Full:           r.full,
			SnapshotSuffix: r.opts.SnapshotSuffix,
		}) + r.dirtySuffix
		return nil
	}

	tag, err := ParseVersion(r.lastTag)
	if err != nil {
		return fmt.Errorf("parsing last tag %q: %w", r.lastTag, err)
	}
	if !tag.HasMajor() {
		r.display = r.lastTag + "-" + qualifier
		return nil
	}
	r.semantic = tag.WithQualifier(qualifier)
	r.display = r.semantic.Relaxed()
	return nil
}

// shallow handles a history truncated at HEAD, where the next tag number
// cannot be computed.
func (r *resolution) shallow() error {
	version := r.base + r.opts.SnapshotSuffix
	if r.snap.CurrentTag != "" {
		version = r.snap.CurrentTag
	}
	return r.render(version + r.dirtySuffix)
}

// fromTags appends the next tag number, or the build number, to the base.
func (r *resolution) fromTags() error {
	baseVersion, err := ParseVersion(r.base)
	if err != nil {
		return fmt.Errorf("parsing version base %q: %w", r.base, err)
	}

	var number, matched string
	if r.opts.BuildNumberMode && r.opts.BuildNumber != "" {
		number = r.opts.BuildNumber
	} else {
		pattern := tagNumberPattern(r.base, baseVersion)
		next := 0
		tag, ok, err := LastMatchingTag(pattern, r.snap.Tags)
		if err != nil {
			return err
		}
		if ok {
			last, err := tagNumber(pattern, tag, pattern.FindStringSubmatch(tag)[1])
			if err != nil {
				return err
			}
			next = last + 1
			matched = tag
			r.lastTag = tag
		}
		number = strconv.Itoa(next)
	}

	var version string
	if r.opts.BuildNumberMode && !r.isRelease {
		version = r.base + "-" + r.branchID + "." + number
	} else {
		separator := "."
		if baseVersion.IsStrictNoQualifier() {
			separator = "-"
		}
		version = r.opts.ReleaseMode.ReleaseVersion(ReleaseContext{
			NextTag:        r.base + separator + number,
			LastTag:        matched,
			CurrentTag:     r.snap.CurrentTag,
			SnapshotSuffix: r.opts.SnapshotSuffix,
		})
	}
	return r.render(version + r.dirtySuffix)
}

// render keeps the computed version as the semantic version and displays it
// strictly, or relaxed in build number mode. Text that is no version at all
// is displayed as is.
func (r *resolution) render(version string) error {
	v, err := ParseVersion(version)
	if err != nil {
		return fmt.Errorf("parsing computed version %q: %w", version, err)
	}
	switch {
	case !v.HasMajor():
		r.display = version
	case r.opts.BuildNumberMode:
		r.semantic, r.display = v, v.Relaxed()
	default:
		r.semantic, r.display = v, v.Strict()
	}
	return nil
}

// tagNumberPattern matches the tags of a version base and captures their
// trailing number.
//
//	2.0-alpha -> ^(?:2\.0-alpha|2\.0\.0-alpha)\.(\d+)$
//	2         -> ^2\.(\d+)(?:\.\d+)?$
//	2.0       -> ^2\.0\.(\d+)$
func tagNumberPattern(base string, v RelaxedVersion) *regexp.Regexp {
	switch {
	case v.Qualifier() != "":
		return regexp.MustCompile(fmt.Sprintf(`^(?:%s|%s)\.(\d+)$`,
			regexp.QuoteMeta(v.Relaxed()), regexp.QuoteMeta(v.Strict())))
	case v.HasMajor() && !v.HasMinor():
		return regexp.MustCompile(fmt.Sprintf(`^%d\.(\d+)(?:\.\d+)?$`, v.Major()))
	default:
		return regexp.MustCompile(fmt.Sprintf(`^%s\.(\d+)$`, regexp.QuoteMeta(base)))
	}
}

func newVersionNumber(v RelaxedVersion, precision int) VersionNumber {
	return VersionNumber{
		Major:         v.Major(),
		Minor:         v.Minor(),
		Patch:         v.Patch(),
		Qualifier:     v.Qualifier(),
		VersionCode:   VersionCode(v.Major(), v.Minor(), v.Patch(), precision),
		VersionString: v.Strict(),
	}
}

// VersionCode packs a version into one integer, precision digits per
// component: 1.25.3 is 12503 with precision 2 and 1025003 with precision 3.
func VersionCode(major, minor, patch, precision int) int {
	scale := 1
	for i := 0; i < precision; i++ {
		scale *= 10
	}
	return major*scale*scale + minor*scale + patch
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
