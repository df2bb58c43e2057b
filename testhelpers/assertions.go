// Package testhelpers builds git and Mercurial release trains from the real
// binaries and asserts on their state.
package testhelpers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Must panics if err is not nil, otherwise returns val.
// Useful in setup code where errors are not expected.
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// ExpectBranches asserts the sorted open branch list of repo
func ExpectBranches(t *testing.T, repo *Repo, expected ...string) {
	t.Helper()
	branches, err := repo.Branches()
	require.NoError(t, err, "failed to list branches")
	require.ElementsMatch(t, expected, branches, "branches do not match")
}

// ExpectMessages asserts that every message is on a commit reachable from branch
func ExpectMessages(t *testing.T, repo *Repo, branch string, messages ...string) {
	t.Helper()
	log, err := repo.Messages(branch)
	require.NoError(t, err, "failed to read log of %s", branch)
	for _, m := range messages {
		require.Contains(t, log, m, "%s is missing commit %q", branch, m)
	}
}

// ExpectNoMessage asserts that no commit reachable from branch has message
func ExpectNoMessage(t *testing.T, repo *Repo, branch, message string) {
	t.Helper()
	log, err := repo.Messages(branch)
	require.NoError(t, err, "failed to read log of %s", branch)
	require.NotContains(t, log, message, "%s unexpectedly has commit %q", branch, message)
}

// ExpectFiles asserts that every file exists at the tip of every branch
func ExpectFiles(t *testing.T, repo *Repo, branches []string, files ...string) {
	t.Helper()
	for _, b := range branches {
		for _, f := range files {
			require.True(t, repo.HasFile(b, f), "%s is missing %s", b, f)
		}
	}
}

// ExpectNoFiles asserts that no file exists at the tip of any branch
func ExpectNoFiles(t *testing.T, repo *Repo, branches []string, files ...string) {
	t.Helper()
	for _, b := range branches {
		for _, f := range files {
			require.False(t, repo.HasFile(b, f), "%s unexpectedly has %s", b, f)
		}
	}
}

// ExpectClosed asserts whether branch is closed
func ExpectClosed(t *testing.T, repo *Repo, branch string, closed bool) {
	t.Helper()
	got, err := repo.IsClosed(branch)
	require.NoError(t, err)
	require.Equal(t, closed, got, "closed state of %s", branch)
}
