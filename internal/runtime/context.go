package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gatekeeper.dev/gatekeeper/internal/config"
	"gatekeeper.dev/gatekeeper/internal/output"
	"gatekeeper.dev/gatekeeper/internal/pushqueue"
	"gatekeeper.dev/gatekeeper/internal/release"
	"gatekeeper.dev/gatekeeper/internal/scm"
	"gatekeeper.dev/gatekeeper/internal/scm/gitscm"
	"gatekeeper.dev/gatekeeper/internal/scm/hgscm"
)

// Context provides access to the workspace and its collaborators
type Context struct {
	SCM      scm.SCM
	Naming   *release.Naming
	Registry pushqueue.Registry
	Config   *config.Config
	Splog    *output.Splog
	RepoRoot string
	Backend  string
}

// NewContext creates a context from already built collaborators
func NewContext(s scm.SCM, naming *release.Naming, registry pushqueue.Registry, splog *output.Splog) *Context {
	if splog == nil {
		splog = output.NewSplog()
	}
	return &Context{
		SCM:      s,
		Naming:   naming,
		Registry: registry,
		Config:   &config.Config{},
		Splog:    splog,
		RepoRoot: s.Root(),
		Backend:  s.Name(),
	}
}

// Options selects the workspace a Context is opened for
type Options struct {
	// Dir is any directory inside the workspace. Defaults to the current directory.
	Dir string
	// ConfigPath overrides the config file location
	ConfigPath string
	// Debug enables debug output on the console
	Debug bool
	// Splog, when set, is used instead of creating one
	Splog *output.Splog
}

// Open loads the config, opens the SCM backend and the pending push
// registry for the workspace containing opts.Dir.
func Open(ctx context.Context, opts Options) (rt *Context, err error) {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	root, err := findRoot(dir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	backend, err := cfg.DetectBackend(root)
	if err != nil {
		return nil, err
	}

	splog := opts.Splog
	if splog == nil {
		splog, err = output.NewSplogWithConfig(output.Options{
			Debug:   opts.Debug,
			LogFile: cfg.LogFileFor(root, backend),
		})
		if err != nil {
			return nil, err
		}
		defer func() {
			if rt == nil {
				_ = splog.Close()
			}
		}()
	}

	naming, err := cfg.Naming(backend)
	if err != nil {
		return nil, err
	}

	var s scm.SCM
	switch backend {
	case config.BackendHg:
		s, err = hgscm.Open(ctx, hgscm.Config{Dir: root, Remote: cfg.RemoteFor(backend), Naming: naming, Logger: splog})
	default:
		s, err = gitscm.Open(gitscm.Config{
			Dir:    root,
			Remote: cfg.RemoteFor(backend),
			Naming: naming,
			Author: cfg.AuthorOrDefault(),
			Logger: splog,
		})
	}
	if err != nil {
		return nil, err
	}

	registryPath := cfg.RegistryPathFor(root, backend)
	if err := os.MkdirAll(filepath.Dir(registryPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	registry, err := pushqueue.OpenSQLite(pushqueue.SQLiteConfig{
		Path:   registryPath,
		Logger: splog.Logger(),
	})
	if err != nil {
		return nil, err
	}

	return &Context{
		SCM:      s,
		Naming:   naming,
		Registry: registry,
		Config:   cfg,
		Splog:    splog,
		RepoRoot: s.Root(),
		Backend:  backend,
	}, nil
}

// findRoot walks up from dir to the first directory holding .git or .hg
func findRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	for current := abs; ; {
		for _, meta := range []string{".git", ".hg"} {
			if _, err := os.Stat(filepath.Join(current, meta)); err == nil {
				return current, nil
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("%s is not inside a git or hg workspace", abs)
		}
		current = parent
	}
}

// Close releases the registry and the log file
func (c *Context) Close() error {
	var firstErr error
	if c.Registry != nil {
		firstErr = c.Registry.Close()
	}
	if c.Splog != nil {
		if err := c.Splog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
