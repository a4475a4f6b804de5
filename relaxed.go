package branchver

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var (
	// 20YY.MM with an optional patch and qualifier
	yearMonthPattern = regexp.MustCompile(`^20\d{2}\.(0[1-9]|1[0-2])(?:\.\d*)?(?:-.*|\+.*)?$`)

	// up to three dot separated numbers anywhere in the text
	coercePattern = regexp.MustCompile(`(?:^|\D)(\d{1,16})(?:\.(\d{1,16}))?(?:\.(\d{1,16}))?(?:$|\D)`)
)

// RelaxedVersion is a leniently parsed version. Absent numeric components
// count as zero but are remembered so that the relaxed rendering reproduces
// the shape of the input ("5" stays "5", "2024.05" stays "2024.05").
//
// Values are immutable; the With* methods return new versions.
type RelaxedVersion struct {
	major *int
	minor *int
	patch *int

	preRelease  []string
	build       []string
	qualifier   string
	equivalents []string
	yearMonth   bool
}

// rawVersion holds the textual components found by one of the parse passes.
type rawVersion struct {
	major, minor, patch string
	preRelease, build   []string
}

// ParseVersion parses text leniently. Text that looks nothing like a version
// yields an empty RelaxedVersion; the only error is a *NumberOverflowError
// for a component that does not fit into an int.
func ParseVersion(text string) (RelaxedVersion, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return RelaxedVersion{}, nil
	}

	raw, ok := scanRelaxed(trimmed)
	if !ok {
		raw, ok = coerce(trimmed)
		if !ok {
			return RelaxedVersion{}, nil
		}
	}

	var (
		v   RelaxedVersion
		err error
	)
	if v.major, err = parseNumber(raw.major); err != nil {
		return RelaxedVersion{}, err
	}
	if v.minor, err = parseNumber(raw.minor); err != nil {
		return RelaxedVersion{}, err
	}
	if v.patch, err = parseNumber(raw.patch); err != nil {
		return RelaxedVersion{}, err
	}
	v.preRelease = raw.preRelease
	v.build = raw.build

	if len(v.preRelease) > 0 {
		v.qualifier += "-" + strings.Join(v.preRelease, ".")
	}
	if len(v.build) > 0 {
		v.qualifier += "+" + strings.Join(v.build, ".")
	}

	if v.major != nil {
		v.yearMonth = yearMonthPattern.MatchString(trimmed)
		if v.qualifier == "" {
			switch {
			case v.minor == nil:
				v.equivalents = []string{
					fmt.Sprintf("%d.0.0", *v.major),
					fmt.Sprintf("%d.0", *v.major),
					strconv.Itoa(*v.major),
				}
			case v.patch == nil:
				v.equivalents = []string{
					fmt.Sprintf("%d.%d.0", *v.major, *v.minor),
					fmt.Sprintf("%d.%d", *v.major, *v.minor),
				}
			}
		}
	}

	return v, nil
}

// MustParseVersion is like ParseVersion but panics on overflow. It is meant
// for constants and tests.
func MustParseVersion(text string) RelaxedVersion {
	v, err := ParseVersion(text)
	if err != nil {
		panic(err)
	}
	return v
}

// scanRelaxed reads [v]major[.minor[.patch]][-pre][+build]. Major and patch
// follow the semver numeric rule, minor accepts leading zeros so that months
// like "05" survive. Dots between components are optional.
func scanRelaxed(text string) (rawVersion, bool) {
	var raw rawVersion
	s := strings.TrimPrefix(text, "v")
	i := 0

	raw.major, i = scanStrictNumber(s, i)
	if raw.major == "" {
		return raw, false
	}
	i = skipByte(s, i, '.')
	end := scanDigits(s, i)
	raw.minor, i = s[i:end], end
	i = skipByte(s, i, '.')
	raw.patch, i = scanStrictNumber(s, i)

	rest := s[i:]
	if strings.HasPrefix(rest, "-") {
		end := strings.IndexByte(rest, '+')
		if end < 0 {
			end = len(rest)
		}
		ids, ok := splitIdentifiers(rest[1:end], validPreReleaseIdentifier)
		if !ok {
			return raw, false
		}
		raw.preRelease = ids
		rest = rest[end:]
	}
	if strings.HasPrefix(rest, "+") {
		ids, ok := splitIdentifiers(rest[1:], validBuildIdentifier)
		if !ok {
			return raw, false
		}
		raw.build = ids
		rest = ""
	}
	return raw, rest == ""
}

func coerce(text string) (rawVersion, bool) {
	m := coercePattern.FindStringSubmatch(text)
	if m == nil {
		return rawVersion{}, false
	}
	return rawVersion{major: m[1], minor: m[2], patch: m[3]}, true
}

// scanStrictNumber reads 0|[1-9]\d* starting at i.
func scanStrictNumber(s string, i int) (string, int) {
	if i >= len(s) || !isDigit(s[i]) {
		return "", i
	}
	if s[i] == '0' {
		return "0", i + 1
	}
	end := scanDigits(s, i)
	return s[i:end], end
}

func scanDigits(s string, i int) int {
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return i
}

func skipByte(s string, i int, b byte) int {
	if i < len(s) && s[i] == b {
		return i + 1
	}
	return i
}

func splitIdentifiers(s string, valid func(string) bool) ([]string, bool) {
	ids := strings.Split(s, ".")
	for _, id := range ids {
		if !valid(id) {
			return nil, false
		}
	}
	return ids, true
}

// validPreReleaseIdentifier accepts a number without leading zeros or an
// alphanumeric identifier holding at least one letter or hyphen.
func validPreReleaseIdentifier(id string) bool {
	if !validBuildIdentifier(id) {
		return false
	}
	if scanDigits(id, 0) == len(id) {
		return id == "0" || id[0] != '0'
	}
	return true
}

func validBuildIdentifier(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !isDigit(c) && !isLetter(c) && c != '-' {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

// parseNumber goes through big.Int so that absurdly long digit runs are
// reported instead of silently wrapping.
func parseNumber(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parsing version number %q", s)
	}
	if !n.IsInt64() || n.Int64() > int64(math.MaxInt) {
		return nil, &NumberOverflowError{Value: s}
	}
	i := int(n.Int64())
	return &i, nil
}

func (v RelaxedVersion) IsEmpty() bool {
	return v.major == nil && v.minor == nil && v.patch == nil && len(v.preRelease) == 0 && len(v.build) == 0
}

func (v RelaxedVersion) HasMajor() bool { return v.major != nil }
func (v RelaxedVersion) HasMinor() bool { return v.minor != nil }
func (v RelaxedVersion) HasPatch() bool { return v.patch != nil }

// IsStrictNoQualifier reports a complete major.minor.patch without qualifier.
func (v RelaxedVersion) IsStrictNoQualifier() bool {
	return v.major != nil && v.minor != nil && v.patch != nil && v.qualifier == ""
}

func (v RelaxedVersion) IsYearMonth() bool { return v.yearMonth }

func (v RelaxedVersion) Major() int { return valueOrZero(v.major) }
func (v RelaxedVersion) Minor() int { return valueOrZero(v.minor) }
func (v RelaxedVersion) Patch() int { return valueOrZero(v.patch) }

func (v RelaxedVersion) PreRelease() []string { return slices.Clone(v.preRelease) }
func (v RelaxedVersion) Build() []string      { return slices.Clone(v.build) }

// Qualifier is the rendered "-pre+build" suffix, empty when neither is set.
func (v RelaxedVersion) Qualifier() string { return v.qualifier }

// Equivalents lists the expanded forms of a major or major.minor version
// without qualifier, e.g. "1" gives [1.0.0 1.0 1]. Empty otherwise.
func (v RelaxedVersion) Equivalents() []string { return slices.Clone(v.equivalents) }

// Relaxed renders only the components that were present.
func (v RelaxedVersion) Relaxed() string {
	return v.relaxed(v.qualifier)
}

// Strict always renders major.minor.patch followed by the qualifier.
func (v RelaxedVersion) Strict() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch()) + v.qualifier
}

func (v RelaxedVersion) String() string { return v.Strict() }

// WithQualifier replaces the qualifier by the given pre-release text.
func (v RelaxedVersion) WithQualifier(preRelease string) RelaxedVersion {
	return v.reparse(v.relaxed("-" + preRelease))
}

func (v RelaxedVersion) WithClearedQualifier() RelaxedVersion {
	return v.reparse(v.relaxed(""))
}

func (v RelaxedVersion) relaxed(qualifier string) string {
	if v.major == nil {
		return qualifier
	}
	var b strings.Builder
	if v.yearMonth {
		fmt.Fprintf(&b, "%4d", *v.major)
	} else {
		b.WriteString(strconv.Itoa(*v.major))
	}
	if v.minor != nil {
		if v.yearMonth {
			fmt.Fprintf(&b, ".%02d", *v.minor)
		} else {
			fmt.Fprintf(&b, ".%d", *v.minor)
		}
		if v.patch != nil {
			fmt.Fprintf(&b, ".%d", *v.patch)
		}
	}
	b.WriteString(qualifier)
	return b.String()
}

func (v RelaxedVersion) reparse(text string) RelaxedVersion {
	// components were narrowed once already, a second parse cannot overflow
	parsed, _ := ParseVersion(text)
	return parsed
}

func valueOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
