package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/jaxxstorm/branchver"
	"github.com/rs/zerolog"
)

// Version will be set by build process
var Version = "dev"

type CLI struct {
	Repo     string `short:"r" help:"Repository path (default: current directory)"`
	Config   string `short:"c" help:"Config file (default: <repo>/.branchver.yaml when present)"`
	LogLevel string `default:"warn" enum:"trace,debug,info,warn,error,disabled" help:"Log level on stderr"`

	BaseVersion         string   `help:"Version base of trunk branches and of release branches without one"`
	Separator           string   `help:"Separator between branch type and version base (default: /)"`
	Releases            []string `help:"Release branch types (default: release,pre)"`
	Trunks              []string `help:"Trunk branch types (default: main)"`
	DirtySuffix         string   `help:"Suffix of dirty working copies (default: -dirty)"`
	DirtyFailOnReleases bool     `help:"Fail when a release branch is dirty"`
	NoWarningOnDirty    bool     `help:"Do not warn about dirty working copies"`
	DirtyStatusLog      bool     `help:"Log the changed files of dirty working copies"`
	SnapshotSuffix      string   `help:"Snapshot suffix (default: -SNAPSHOT)"`
	Precision           int      `help:"Digits per component in the version code (default: 2)"`
	BuildNumberMode     bool     `name:"jenkins" help:"Version from the project version and the build number"`
	BuildNumber         string   `env:"BUILD_NUMBER" help:"Build number used with --jenkins"`
	ProjectVersion      string   `help:"Project version used with --jenkins"`
	LastTagPattern      string   `help:"Pattern of the last tag, its first group captures a number (default: trailing number)"`
	BranchEnv           []string `help:"Environment variables overriding the branch name"`
	AbbrevLength        int      `help:"Length of abbreviated commits (default: 7)"`
	ReleaseMode         string   `help:"Version of release branches: tag or snapshot"`
	DisplayMode         string   `help:"Version of branches without version base: full, snapshot or base"`

	Show    ShowCmd    `cmd:"" default:"withargs" help:"Display the version information"`
	File    FileCmd    `cmd:"" help:"Write the version information into a properties file"`
	Parse   ParseCmd   `cmd:"" help:"Show how a version string is read"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

func main() {
	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("branchver"),
		kong.Description("Compute build versions from the branch, tags and commit of a Git checkout"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *CLI) root() (string, error) {
	if c.Repo != "" {
		return c.Repo, nil
	}
	root, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return root, nil
}

func (c *CLI) logger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parsing log level: %w", err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger(), nil
}

// options layers the config file and then the flags over the defaults.
func (c *CLI) options(root string) (branchver.Options, error) {
	opts := branchver.DefaultOptions()

	path, explicit := c.Config, c.Config != ""
	if !explicit {
		path = filepath.Join(root, branchver.DefaultConfigFile)
	}
	cfg, err := branchver.LoadConfig(path)
	switch {
	case err == nil:
		if err := cfg.Apply(&opts); err != nil {
			return opts, fmt.Errorf("applying %s: %w", path, err)
		}
	case !explicit && errors.Is(err, fs.ErrNotExist):
	default:
		return opts, err
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&opts.BaseVersion, c.BaseVersion)
	override(&opts.Separator, c.Separator)
	override(&opts.DirtySuffix, c.DirtySuffix)
	override(&opts.SnapshotSuffix, c.SnapshotSuffix)
	override(&opts.BuildNumber, c.BuildNumber)
	override(&opts.ProjectVersion, c.ProjectVersion)
	override(&opts.LastTagPattern, c.LastTagPattern)

	if c.Releases != nil {
		opts.Releases = c.Releases
	}
	if c.Trunks != nil {
		opts.Trunks = c.Trunks
	}
	if c.BranchEnv != nil {
		opts.BranchEnv = c.BranchEnv
	}
	if c.Precision > 0 {
		opts.Precision = c.Precision
	}
	if c.AbbrevLength > 0 {
		opts.AbbrevLength = c.AbbrevLength
	}
	opts.DirtyFailOnReleases = opts.DirtyFailOnReleases || c.DirtyFailOnReleases
	opts.NoWarningOnDirty = opts.NoWarningOnDirty || c.NoWarningOnDirty
	opts.DirtyStatusLog = opts.DirtyStatusLog || c.DirtyStatusLog
	opts.BuildNumberMode = opts.BuildNumberMode || c.BuildNumberMode

	if c.ReleaseMode != "" {
		if opts.ReleaseMode, err = branchver.ParseReleaseMode(c.ReleaseMode); err != nil {
			return opts, err
		}
	}
	if c.DisplayMode != "" {
		if opts.DisplayMode, err = branchver.ParseDisplayMode(c.DisplayMode); err != nil {
			return opts, err
		}
	}

	logger, err := c.logger()
	if err != nil {
		return opts, err
	}
	opts.Logger = &logger
	return opts, nil
}

func (c *CLI) calculateVersion() (*branchver.VersionInfo, string, error) {
	root, err := c.root()
	if err != nil {
		return nil, "", err
	}
	opts, err := c.options(root)
	if err != nil {
		return nil, "", err
	}
	info, err := branchver.Calculate(context.Background(), root, opts)
	if err != nil {
		return nil, "", fmt.Errorf("computing version: %w", err)
	}
	return info, root, nil
}

type ShowCmd struct {
	JSON   bool   `short:"j" help:"Output as JSON"`
	Short  bool   `short:"s" help:"Output the display version only"`
	Semver bool   `help:"Output the version number as strict semver"`
	Prefix string `default:"[version] " help:"Prefix of every line"`
}

func (s *ShowCmd) Run(cli *CLI) error {
	info, _, err := cli.calculateVersion()
	if err != nil {
		return err
	}

	switch {
	case s.JSON:
		return branchver.WriteJSON(os.Stdout, info)
	case s.Short:
		fmt.Println(info.Display)
	case s.Semver:
		sv := info.Semver()
		fmt.Println(sv.String())
	default:
		fmt.Print(branchver.DisplayText(info, s.Prefix))
	}
	return nil
}

type FileCmd struct {
	Output string `short:"o" default:"build/version.properties" help:"Properties file, relative to the repository"`
	Prefix string `default:"VERSION_" help:"Prefix of every key"`
}

func (f *FileCmd) Run(cli *CLI) error {
	info, root, err := cli.calculateVersion()
	if err != nil {
		return err
	}

	path := f.Output
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", f.Output, err)
	}

	return branchver.WriteProperties(osfs.New(string(filepath.Separator)), path, info, f.Prefix)
}

type ParseCmd struct {
	Text string `arg:"" help:"Version string to parse"`
	JSON bool   `short:"j" help:"Output as JSON"`
}

type parsedVersion struct {
	Relaxed     string   `json:"relaxed"`
	Strict      string   `json:"strict"`
	Major       int      `json:"major"`
	Minor       int      `json:"minor"`
	Patch       int      `json:"patch"`
	Qualifier   string   `json:"qualifier"`
	YearMonth   bool     `json:"yearMonth"`
	Equivalents []string `json:"equivalents"`
}

func (p *ParseCmd) Run(_ *CLI) error {
	v, err := branchver.ParseVersion(p.Text)
	if err != nil {
		return fmt.Errorf("parsing %q: %w", p.Text, err)
	}
	if v.IsEmpty() {
		return fmt.Errorf("%q holds no version", p.Text)
	}

	parsed := parsedVersion{
		Relaxed:     v.Relaxed(),
		Strict:      v.Strict(),
		Major:       v.Major(),
		Minor:       v.Minor(),
		Patch:       v.Patch(),
		Qualifier:   v.Qualifier(),
		YearMonth:   v.IsYearMonth(),
		Equivalents: v.Equivalents(),
	}

	if p.JSON {
		return json.NewEncoder(os.Stdout).Encode(parsed)
	}

	fmt.Printf("%-12s= %s\n", "relaxed", parsed.Relaxed)
	fmt.Printf("%-12s= %s\n", "strict", parsed.Strict)
	fmt.Printf("%-12s= %d\n", "major", parsed.Major)
	fmt.Printf("%-12s= %d\n", "minor", parsed.Minor)
	fmt.Printf("%-12s= %d\n", "patch", parsed.Patch)
	fmt.Printf("%-12s= %s\n", "qualifier", parsed.Qualifier)
	fmt.Printf("%-12s= %t\n", "yearMonth", parsed.YearMonth)
	fmt.Printf("%-12s= %v\n", "equivalents", parsed.Equivalents)
	return nil
}

type VersionCmd struct {
	JSON bool `short:"j" help:"Output as JSON"`
}

func (v *VersionCmd) Run(_ *CLI) error {
	versionInfo := map[string]string{
		"version": Version,
		"name":    "branchver",
	}

	if v.JSON {
		return json.NewEncoder(os.Stdout).Encode(versionInfo)
	}

	fmt.Printf("branchver version %s\n", Version)
	return nil
}
