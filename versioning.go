package branchver

import (
	"context"
	"slices"
	"sync"
)

// Versioning computes the version of one working copy and remembers it
// until the options change.
type Versioning struct {
	root    string
	gateway Gateway

	mu   sync.Mutex
	opts Options
	info *VersionInfo
}

// New returns a Versioning of the working copy at root. A nil gateway reads
// the repository with go-git.
func New(root string, opts Options, gateway Gateway) *Versioning {
	if gateway == nil {
		gateway = GitGateway{}
	}
	return &Versioning{root: root, gateway: gateway, opts: opts}
}

// Info returns the version, computing it on first use.
func (v *Versioning) Info(ctx context.Context) (*VersionInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.info != nil {
		return v.info, nil
	}
	info, err := compute(ctx, v.gateway, v.root, v.opts)
	if err != nil {
		return nil, err
	}
	v.info = info
	return info, nil
}

// Configure changes the options and drops the remembered version.
func (v *Versioning) Configure(fn func(*Options)) {
	v.mu.Lock()
	defer v.mu.Unlock()

	fn(&v.opts)
	v.info = nil
}

// Invalidate drops the remembered version.
func (v *Versioning) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.info = nil
}

// Options returns a copy of the current options.
func (v *Versioning) Options() Options {
	v.mu.Lock()
	defer v.mu.Unlock()

	opts := v.opts
	opts.Releases = slices.Clone(opts.Releases)
	opts.Trunks = slices.Clone(opts.Trunks)
	opts.BranchEnv = slices.Clone(opts.BranchEnv)
	return opts
}

// Calculate computes the version of the git working copy at root.
func Calculate(ctx context.Context, root string, opts Options) (*VersionInfo, error) {
	return compute(ctx, GitGateway{}, root, opts)
}

func compute(ctx context.Context, gateway Gateway, root string, opts Options) (*VersionInfo, error) {
	opts = opts.withDefaults()
	log := opts.logger()

	if !gateway.HasRepository(root) {
		log.Debug().Str("root", root).Msg("no repository found")
		return EmptyVersionInfo(), nil
	}

	repo, err := gateway.Open(root)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Debug().Err(err).Msg("closing repository")
		}
	}()

	snap, err := repo.Snapshot(ctx, SnapshotOptions{
		BranchEnv:      opts.BranchEnv,
		LastTagPattern: opts.LastTagPattern,
		AbbrevLength:   opts.AbbrevLength,
	})
	if err != nil {
		return nil, err
	}
	return Resolve(snap, opts)
}
