package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplog(t *testing.T) {
	t.Setenv(EnvDebug, "")
	t.Setenv("DEBUG", "")

	t.Run("writes bare messages with prefixes", func(t *testing.T) {
		var buf bytes.Buffer
		splog, err := NewSplogWithConfig(Options{Writer: &buf})
		require.NoError(t, err)

		splog.Info("merging %s into %s", "c3", "r1336")
		splog.Warn("no closing")
		splog.Error("failed: %v", "boom")
		splog.Debug("hidden")

		require.Equal(t, "merging c3 into r1336\n⚠️  no closing\n❌ failed: boom\n", buf.String())
	})

	t.Run("debug enabled", func(t *testing.T) {
		var buf bytes.Buffer
		splog, err := NewSplogWithConfig(Options{Writer: &buf, Debug: true})
		require.NoError(t, err)
		splog.Debug("hop %d", 2)
		require.Equal(t, "hop 2\n", buf.String())
	})

	t.Run("quiet suppresses console output", func(t *testing.T) {
		var buf bytes.Buffer
		splog, err := NewSplogWithConfig(Options{Writer: &buf})
		require.NoError(t, err)
		splog.SetQuiet(true)
		require.True(t, splog.IsQuiet())
		splog.Info("hidden")
		splog.Newline()
		require.Empty(t, buf.String())
	})

	t.Run("log file receives debug messages", func(t *testing.T) {
		var buf bytes.Buffer
		logFile := filepath.Join(t.TempDir(), "logs", "gatekeeper.log")
		splog, err := NewSplogWithConfig(Options{Writer: &buf, LogFile: logFile})
		require.NoError(t, err)

		splog.Debug("pulled %s", "abc123")
		splog.Logger().Info("structured", "branch", "r1338")
		require.NoError(t, splog.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		require.Contains(t, string(content), "pulled abc123")
		require.Contains(t, string(content), "branch=r1338")
		require.Empty(t, buf.String())
	})
}

func TestOpenLogFile(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv(EnvLogMaxSize, "")
		t.Setenv(EnvLogMaxBackups, "")
		t.Setenv(EnvLogMaxAge, "")
		l := openLogFile(filepath.Join(t.TempDir(), "x.log"))
		require.Equal(t, defaultLogMaxSize, l.MaxSize)
		require.Equal(t, 5, l.MaxBackups)
		require.Equal(t, 30, l.MaxAge)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv(EnvLogMaxSize, "10")
		t.Setenv(EnvLogMaxBackups, "0")
		t.Setenv(EnvLogMaxAge, "bogus")
		l := openLogFile(filepath.Join(t.TempDir(), "x.log"))
		require.Equal(t, 10, l.MaxSize)
		require.Equal(t, 0, l.MaxBackups)
		require.Equal(t, 30, l.MaxAge)
	})
}
