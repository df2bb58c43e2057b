package gitscm_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gatekeeper.dev/gatekeeper/internal/release"
	"gatekeeper.dev/gatekeeper/internal/scm/gitscm"
	"gatekeeper.dev/gatekeeper/testhelpers"
)

// openWorkspace opens the workspace of a git scene with no user or system
// git config in effect.
func openWorkspace(t *testing.T, author string) (*testhelpers.Scene, *gitscm.Backend) {
	t.Helper()
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	scene := testhelpers.NewScene(t, testhelpers.Git, "r1336", "r1338")

	naming, err := release.NewNaming("r", scene.Trunk)
	require.NoError(t, err)
	backend, err := gitscm.Open(gitscm.Config{Dir: scene.Workspace.Dir, Naming: naming, Author: author})
	require.NoError(t, err)
	return scene, backend
}

func lastIdentity(t *testing.T, repo *testhelpers.Repo, rev string) string {
	t.Helper()
	who, err := repo.Run("log", "-1", "--format=%an <%ae>|%cn <%ce>", rev)
	require.NoError(t, err)
	return who
}

func TestMergeCommitWithoutGitConfig(t *testing.T) {
	scene, backend := openWorkspace(t, "")
	ws := scene.Workspace
	ctx := t.Context()

	require.NoError(t, backend.MergeInto(ctx, "c3", "r1336"))
	require.NoError(t, backend.Commit(ctx, "Merged c3 into r1336", "Release Bot <bot@example.com>"))

	require.True(t, ws.HasFile("r1336", "c3.txt"))
	require.Equal(t, "Release Bot <bot@example.com>|Release Bot <bot@example.com>", lastIdentity(t, ws, "r1336"))
}

func TestOpenRejectsInvalidIdentity(t *testing.T) {
	scene := testhelpers.NewScene(t, testhelpers.Git, "r1336")
	naming, err := release.NewNaming("r", scene.Trunk)
	require.NoError(t, err)

	_, err = gitscm.Open(gitscm.Config{Dir: scene.Workspace.Dir, Naming: naming, Author: "Broken <nope"})
	require.ErrorContains(t, err, "invalid author")
}

func TestCommitTakesOnlyStagedFiles(t *testing.T) {
	scene, backend := openWorkspace(t, "")
	ws := scene.Workspace
	ctx := t.Context()

	require.NoError(t, backend.Update(ctx, "r1338"))
	require.NoError(t, os.WriteFile(filepath.Join(ws.Dir, "release.txt"), []byte("1338\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(ws.Dir, "build.log"), []byte("noise\n"), 0600))

	require.NoError(t, backend.Add(ctx, "release.txt"))
	require.NoError(t, backend.Commit(ctx, "Created release branch r1338", "Release Bot <bot@example.com>"))

	require.True(t, ws.HasFile("r1338", "release.txt"))
	require.False(t, ws.HasFile("r1338", "build.log"))
	require.FileExists(t, filepath.Join(ws.Dir, "build.log"))

	status, err := ws.Run("status", "--porcelain")
	require.NoError(t, err)
	require.Equal(t, "?? build.log", status)
}

func TestRemoteURL(t *testing.T) {
	scene, backend := openWorkspace(t, "")

	url, err := backend.RemoteURL(t.Context())
	require.NoError(t, err)
	require.Equal(t, scene.Origin.Dir, url)
}
