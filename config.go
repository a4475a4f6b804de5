package branchver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working copy root.
const DefaultConfigFile = ".branchver.yaml"

// Config is the file form of Options. Unset fields keep the value of the
// options they are applied to.
type Config struct {
	Separator           *string  `yaml:"separator"`
	Releases            []string `yaml:"releases"`
	Trunks              []string `yaml:"trunks"`
	BaseVersion         *string  `yaml:"base_version"`
	DirtySuffix         *string  `yaml:"dirty_suffix"`
	DirtyFailOnReleases *bool    `yaml:"dirty_fail_on_releases"`
	NoWarningOnDirty    *bool    `yaml:"no_warning_on_dirty"`
	DirtyStatusLog      *bool    `yaml:"dirty_status_log"`
	SnapshotSuffix      *string  `yaml:"snapshot_suffix"`
	Precision           *int     `yaml:"precision"`
	BuildNumberMode     *bool    `yaml:"build_number_mode"`
	ProjectVersion      *string  `yaml:"project_version"`
	LastTagPattern      *string  `yaml:"last_tag_pattern"`
	BranchEnv           []string `yaml:"branch_env"`
	AbbrevLength        *int     `yaml:"abbrev_length"`
	ReleaseMode         *string  `yaml:"release_mode"`
	DisplayMode         *string  `yaml:"display_mode"`
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config. Unknown keys are rejected and an empty
// document is an empty config.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return &cfg, nil
}

// Apply copies the set fields onto opts.
func (c *Config) Apply(opts *Options) error {
	setString(&opts.Separator, c.Separator)
	setString(&opts.BaseVersion, c.BaseVersion)
	setString(&opts.DirtySuffix, c.DirtySuffix)
	setString(&opts.SnapshotSuffix, c.SnapshotSuffix)
	setString(&opts.ProjectVersion, c.ProjectVersion)
	setString(&opts.LastTagPattern, c.LastTagPattern)
	setBool(&opts.DirtyFailOnReleases, c.DirtyFailOnReleases)
	setBool(&opts.NoWarningOnDirty, c.NoWarningOnDirty)
	setBool(&opts.DirtyStatusLog, c.DirtyStatusLog)
	setBool(&opts.BuildNumberMode, c.BuildNumberMode)

	if c.Releases != nil {
		opts.Releases = c.Releases
	}
	if c.Trunks != nil {
		opts.Trunks = c.Trunks
	}
	if c.BranchEnv != nil {
		opts.BranchEnv = c.BranchEnv
	}
	if c.Precision != nil {
		if *c.Precision <= 0 {
			return fmt.Errorf("precision must be positive, got %d", *c.Precision)
		}
		opts.Precision = *c.Precision
	}
	if c.AbbrevLength != nil {
		opts.AbbrevLength = *c.AbbrevLength
	}
	if c.ReleaseMode != nil {
		mode, err := ParseReleaseMode(*c.ReleaseMode)
		if err != nil {
			return err
		}
		opts.ReleaseMode = mode
	}
	if c.DisplayMode != nil {
		mode, err := ParseDisplayMode(*c.DisplayMode)
		if err != nil {
			return err
		}
		opts.DisplayMode = mode
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
