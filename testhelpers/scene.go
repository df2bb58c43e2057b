package testhelpers

import (
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Feature is the feature branch every scene forks from its lowest release
const Feature = "c3"

// Scene is a release train published to an origin repository, with a
// workspace clone for the steps under test and a second clone standing in
// for a contributor's repository.
type Scene struct {
	Backend   string
	Trunk     string
	Releases  []string
	Origin    *Repo
	Workspace *Repo
	Fork      *Repo
}

// TrunkFor returns the trunk name of backend
func TrunkFor(backend string) string {
	if backend == Hg {
		return "default"
	}
	return "master"
}

// RequireBinary skips the test when backend's binary is not installed
func RequireBinary(t *testing.T, backend string) {
	t.Helper()
	if _, err := exec.LookPath(backend); err != nil {
		t.Skipf("%s is not installed", backend)
	}
}

// NewScene builds the train: a "base" commit on the trunk, then each
// release forked from the one before it, then Feature forked from the
// first release. Every commit adds a file named after its branch.
func NewScene(t *testing.T, backend string, releases ...string) *Scene {
	t.Helper()
	RequireBinary(t, backend)
	require.NotEmpty(t, releases)

	dir := t.TempDir()
	trunk := TrunkFor(backend)

	seed, err := InitRepo(backend, filepath.Join(dir, "seed"), trunk)
	require.NoError(t, err)
	require.NoError(t, seed.CommitFile("base.txt", "base\n", "base"))

	for _, r := range releases {
		require.NoError(t, seed.StartBranch(r))
		require.NoError(t, seed.CommitFile(r+".txt", r+"\n", r))
	}
	require.NoError(t, seed.Checkout(releases[0]))
	require.NoError(t, seed.StartBranch(Feature))
	require.NoError(t, seed.CommitFile(Feature+".txt", Feature+"\n", Feature))
	require.NoError(t, seed.Checkout(trunk))

	origin := seed
	if backend == Git {
		origin, err = seed.Clone(filepath.Join(dir, "origin.git"), true)
		require.NoError(t, err)
	}

	workspace, err := origin.Clone(filepath.Join(dir, "workspace"), false)
	require.NoError(t, err)
	fork, err := origin.Clone(filepath.Join(dir, "fork"), false)
	require.NoError(t, err)

	return &Scene{
		Backend:   backend,
		Trunk:     trunk,
		Releases:  releases,
		Origin:    origin,
		Workspace: workspace,
		Fork:      fork,
	}
}

// ForkRevision commits a change on top of Feature in the fork and returns
// its id. The fork is never pushed, so the revision only exists there.
func (s *Scene) ForkRevision(t *testing.T) string {
	t.Helper()
	require.NoError(t, s.Fork.Checkout(Feature))
	require.NoError(t, s.Fork.CommitFile("fork.txt", "fork\n", "fork change"))
	rev, err := s.Fork.Tip()
	require.NoError(t, err)
	return rev
}
