package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"gatekeeper.dev/gatekeeper/internal/release"
)

// FileName is the config file looked up at the workspace root
const FileName = ".gatekeeper.yaml"

// Backend names
const (
	BackendGit = "git"
	BackendHg  = "hg"
)

// Default values
const (
	DefaultAuthor     = "Gatekeeper <gatekeeper@localhost>"
	DefaultGitTrunk   = "master"
	DefaultHgTrunk    = "default"
	DefaultTokenEnv   = "GITHUB_TOKEN"
	registryFileName  = "pending.db"
	logFileName       = "gatekeeper.log"
	stateDirName      = "gatekeeper"
	continuationName  = "continue.yaml"
	defaultGitRemote  = "origin"
)

// Config holds every setting of a gatekeeper workspace
type Config struct {
	// Backend is "git" or "hg". Empty means detected from the workspace.
	Backend       string            `yaml:"backend,omitempty"`
	Trunk         string            `yaml:"trunk,omitempty"`
	ReleasePrefix string            `yaml:"releasePrefix,omitempty"`
	Remote        string            `yaml:"remote,omitempty"`
	Author        string            `yaml:"author,omitempty"`
	ReleaseFile   ReleaseFileConfig `yaml:"releaseFile,omitempty"`
	Messages      MessagesConfig    `yaml:"messages,omitempty"`
	Registry      RegistryConfig    `yaml:"registry,omitempty"`
	LogFile       string            `yaml:"logFile,omitempty"`
	GitHub        GitHubConfig      `yaml:"github,omitempty"`
}

// ReleaseFileConfig is the file written on every newly provisioned release
// branch. {{release}} in Template is replaced by the release number.
type ReleaseFileConfig struct {
	Path     string `yaml:"path,omitempty"`
	Template string `yaml:"template,omitempty"`
}

// MessagesConfig holds commit message templates
type MessagesConfig struct {
	Integration MessageTemplate `yaml:"integration,omitempty"`
	Upmerge     MessageTemplate `yaml:"upmerge,omitempty"`
	Release     MessageTemplate `yaml:"release,omitempty"`
	Close       MessageTemplate `yaml:"close,omitempty"`
	Heads       MessageTemplate `yaml:"heads,omitempty"`
}

// RegistryConfig locates the pending push database
type RegistryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// GitHubConfig locates the pull requests that carry merge cases
type GitHubConfig struct {
	Owner string `yaml:"owner,omitempty"`
	Repo  string `yaml:"repo,omitempty"`
	// TokenEnv names the environment variable holding the API token
	TokenEnv string `yaml:"tokenEnv,omitempty"`
	// BaseURL points at a GitHub Enterprise API, e.g. https://ghe.example.com/api/v3/
	BaseURL string `yaml:"baseURL,omitempty"`
}

// Load reads the config of the workspace at root. path overrides the
// default location; a missing default file yields the defaults, a missing
// explicit file is an error.
func Load(root, path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to the default location under root
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(root, FileName), data, 0600)
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"GATEKEEPER_BACKEND":        &c.Backend,
		"GATEKEEPER_TRUNK":          &c.Trunk,
		"GATEKEEPER_RELEASE_PREFIX": &c.ReleasePrefix,
		"GATEKEEPER_REMOTE":         &c.Remote,
		"GATEKEEPER_AUTHOR":         &c.Author,
		"GATEKEEPER_REGISTRY":       &c.Registry.Path,
		"GATEKEEPER_LOG_FILE":       &c.LogFile,
		"GATEKEEPER_GITHUB_OWNER":   &c.GitHub.Owner,
		"GATEKEEPER_GITHUB_REPO":    &c.GitHub.Repo,
	}
	for key, field := range overrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*field = v
		}
	}
}

// Validate checks the settings that can be checked without a workspace
func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendGit, BackendHg:
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendGit, BackendHg)
	}
	if c.ReleaseFile.Path != "" {
		if err := c.ReleaseTemplate().Validate(); err != nil {
			return err
		}
	}
	templates := []struct {
		name     string
		tmpl     MessageTemplate
		required []string
	}{
		{"messages.integration", c.Messages.Integration, []string{PlaceholderTarget}},
		{"messages.upmerge", c.Messages.Upmerge, []string{PlaceholderSource, PlaceholderTarget}},
		{"messages.release", c.Messages.Release, nil},
		{"messages.close", c.Messages.Close, nil},
		{"messages.heads", c.Messages.Heads, nil},
	}
	for _, t := range templates {
		if t.tmpl == "" {
			continue
		}
		if err := t.tmpl.Validate(t.required...); err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
	}
	return nil
}

// DetectBackend returns the configured backend, or the one whose metadata
// directory exists under root.
func (c *Config) DetectBackend(root string) (string, error) {
	if c.Backend != "" {
		return c.Backend, nil
	}
	for _, backend := range []string{BackendHg, BackendGit} {
		if info, err := os.Stat(filepath.Join(root, "."+backend)); err == nil && info.IsDir() {
			return backend, nil
		}
	}
	return "", fmt.Errorf("no .git or .hg directory in %s; set backend in %s", root, FileName)
}

// TrunkFor returns the trunk branch, defaulting per backend
func (c *Config) TrunkFor(backend string) string {
	if c.Trunk != "" {
		return c.Trunk
	}
	if backend == BackendHg {
		return DefaultHgTrunk
	}
	return DefaultGitTrunk
}

// RemoteFor returns the remote, defaulting per backend. An empty result
// for hg means the repository's default path.
func (c *Config) RemoteFor(backend string) string {
	if c.Remote != "" || backend == BackendHg {
		return c.Remote
	}
	return defaultGitRemote
}

// Naming returns the release naming convention for backend
func (c *Config) Naming(backend string) (*release.Naming, error) {
	return release.NewNaming(c.ReleasePrefix, c.TrunkFor(backend))
}

// AuthorOrDefault returns the commit author
func (c *Config) AuthorOrDefault() string {
	if c.Author != "" {
		return c.Author
	}
	return DefaultAuthor
}

// ReleaseTemplate returns the release file template. It is zero when no
// release file is configured.
func (c *Config) ReleaseTemplate() release.Template {
	return release.Template{Path: c.ReleaseFile.Path, Content: c.ReleaseFile.Template}
}

// StateDir is where gatekeeper keeps per-workspace state, inside the
// backend's metadata directory so it is never committed.
func StateDir(root, backend string) string {
	return filepath.Join(root, "."+backend, stateDirName)
}

// RegistryPathFor returns the pending push database path
func (c *Config) RegistryPathFor(root, backend string) string {
	if c.Registry.Path != "" {
		return c.Registry.Path
	}
	return filepath.Join(StateDir(root, backend), registryFileName)
}

// LogFileFor returns the log file path
func (c *Config) LogFileFor(root, backend string) string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(StateDir(root, backend), logFileName)
}

// TokenEnvOrDefault returns the environment variable holding the GitHub token
func (c *Config) TokenEnvOrDefault() string {
	if c.GitHub.TokenEnv != "" {
		return c.GitHub.TokenEnv
	}
	return DefaultTokenEnv
}
