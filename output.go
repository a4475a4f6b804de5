package branchver

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Default prefixes of the rendered lines.
const (
	DefaultDisplayPrefix    = "[version] "
	DefaultPropertiesPrefix = "VERSION_"
)

// NoVersionText is displayed when there is no repository to version.
const NoVersionText = "No version can be computed from the SCM."

type field struct {
	key   string
	value any
}

// fields lists the rendered values in output order.
func fields(info *VersionInfo) []field {
	if info == nil {
		info = EmptyVersionInfo()
	}
	n := info.VersionNumber
	return []field{
		{"build", info.Build},
		{"branch", info.Branch},
		{"base", info.Base},
		{"branchId", info.BranchID},
		{"branchType", info.BranchType},
		{"commit", info.Commit},
		{"display", info.Display},
		{"full", info.Full},
		{"scm", info.Scm},
		{"tag", info.Tag},
		{"lastTag", info.LastTag},
		{"dirty", info.Dirty},
		{"versionCode", n.VersionCode},
		{"major", n.Major},
		{"minor", n.Minor},
		{"patch", n.Patch},
		{"qualifier", n.Qualifier},
		{"time", info.Time},
	}
}

// DisplayText renders info as aligned "key = value" lines, each starting
// with prefix.
func DisplayText(info *VersionInfo, prefix string) string {
	if info.IsEmpty() {
		return prefix + NoVersionText + "\n"
	}

	var b strings.Builder
	for _, f := range fields(info) {
		fmt.Fprintf(&b, "%s%-12s= %v\n", prefix, f.key, f.value)
	}
	return b.String()
}

// PropertiesText renders info as KEY=value lines, keys upper-cased and
// prefixed.
func PropertiesText(info *VersionInfo, prefix string) string {
	var b strings.Builder
	for _, f := range fields(info) {
		key := f.key
		if key == "lastTag" {
			key = "last_tag"
		}
		fmt.Fprintf(&b, "%s%s=%v\n", prefix, strings.ToUpper(key), f.value)
	}
	return b.String()
}

// WriteProperties writes the properties of info to path, creating the
// parent directories.
func WriteProperties(fs billy.Filesystem, path string, info *VersionInfo, prefix string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := util.WriteFile(fs, path, []byte(PropertiesText(info, prefix)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// WriteJSON encodes info as indented JSON.
func WriteJSON(w io.Writer, info *VersionInfo) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
