package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0600))
}

func TestLoad(t *testing.T) {
	t.Setenv("GATEKEEPER_TRUNK", "")
	t.Setenv("GATEKEEPER_AUTHOR", "")
	t.Setenv("GATEKEEPER_BACKEND", "")

	t.Run("missing default file yields defaults", func(t *testing.T) {
		cfg, err := Load(t.TempDir(), "")
		require.NoError(t, err)
		require.Equal(t, "master", cfg.TrunkFor(BackendGit))
		require.Equal(t, "default", cfg.TrunkFor(BackendHg))
		require.Equal(t, "origin", cfg.RemoteFor(BackendGit))
		require.Empty(t, cfg.RemoteFor(BackendHg))
		require.Equal(t, DefaultAuthor, cfg.AuthorOrDefault())
		require.True(t, cfg.ReleaseTemplate().IsZero())
		require.Equal(t, "GITHUB_TOKEN", cfg.TokenEnvOrDefault())
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("parses yaml", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, `
backend: hg
trunk: default
releasePrefix: r
author: Build Bot <build@example.com>
releaseFile:
  path: release.txt
  template: "{{release}}"
messages:
  upmerge: "Upmerged {source} into {target}"
github:
  owner: paylogic
  repo: app
`)
		cfg, err := Load(dir, "")
		require.NoError(t, err)
		require.Equal(t, BackendHg, cfg.Backend)
		require.Equal(t, "Build Bot <build@example.com>", cfg.AuthorOrDefault())
		require.Equal(t, "release.txt", cfg.ReleaseTemplate().Path)
		require.Equal(t, MessageTemplate("Upmerged {source} into {target}"), cfg.Messages.Upmerge)
		require.Equal(t, "paylogic", cfg.GitHub.Owner)

		naming, err := cfg.Naming(cfg.Backend)
		require.NoError(t, err)
		require.True(t, naming.IsTrunk("default"))
		require.True(t, naming.IsRelease("r1336"))
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "trunk: main\n")
		t.Setenv("GATEKEEPER_TRUNK", "develop")
		cfg, err := Load(dir, "")
		require.NoError(t, err)
		require.Equal(t, "develop", cfg.TrunkFor(BackendGit))
	})

	t.Run("rejects invalid settings", func(t *testing.T) {
		for name, content := range map[string]string{
			"backend":       "backend: svn\n",
			"release file":  "releaseFile:\n  path: ../escape.txt\n",
			"placeholder":   "messages:\n  upmerge: \"Merged {src} into {target}\"\n",
			"missing token": "messages:\n  upmerge: \"Merged into {target}\"\n",
			"yaml":          "trunk: [unterminated\n",
		} {
			t.Run(name, func(t *testing.T) {
				dir := t.TempDir()
				writeConfig(t, dir, content)
				_, err := Load(dir, "")
				require.Error(t, err)
			})
		}
	})

	t.Run("save round trips", func(t *testing.T) {
		dir := t.TempDir()
		cfg := &Config{Backend: BackendGit, Trunk: "main", ReleaseFile: ReleaseFileConfig{Path: "VERSION", Template: "{{release}}"}}
		require.NoError(t, cfg.Save(dir))
		loaded, err := Load(dir, "")
		require.NoError(t, err)
		require.Equal(t, cfg, loaded)
	})
}

func TestDetectBackend(t *testing.T) {
	t.Run("configured wins", func(t *testing.T) {
		backend, err := (&Config{Backend: BackendHg}).DetectBackend(t.TempDir())
		require.NoError(t, err)
		require.Equal(t, BackendHg, backend)
	})

	t.Run("from metadata directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0750))
		backend, err := (&Config{}).DetectBackend(dir)
		require.NoError(t, err)
		require.Equal(t, BackendGit, backend)
	})

	t.Run("none", func(t *testing.T) {
		_, err := (&Config{}).DetectBackend(t.TempDir())
		require.Error(t, err)
	})
}

func TestStatePaths(t *testing.T) {
	cfg := &Config{}
	require.Equal(t, filepath.Join("/ws", ".git", "gatekeeper", "pending.db"), cfg.RegistryPathFor("/ws", BackendGit))
	require.Equal(t, filepath.Join("/ws", ".hg", "gatekeeper", "gatekeeper.log"), cfg.LogFileFor("/ws", BackendHg))

	cfg.Registry.Path = "/shared/pending.db"
	require.Equal(t, "/shared/pending.db", cfg.RegistryPathFor("/ws", BackendGit))
}
