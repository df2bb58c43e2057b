package cli_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/require"

	"gatekeeper.dev/gatekeeper/testhelpers"
)

func newGitScene(t *testing.T) *testhelpers.Scene {
	t.Helper()
	return testhelpers.NewScene(t, testhelpers.Git, "r1336", "r1338", "r1340")
}

func runIDEnv(id string) []string {
	return []string{"GATEKEEPER_RUN_ID=" + id}
}

func TestVersion(t *testing.T) {
	res := testhelpers.RunCLI(t, t.TempDir(), nil, "version")
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, res.Output, "gatekeeper dev")
}

func TestMergeRequiresRunID(t *testing.T) {
	s := newGitScene(t)

	res := testhelpers.RunCLI(t, s.Workspace.Dir, nil, "merge", "--branch", "c3", "--target", "r1336")
	require.Equal(t, 1, res.ExitCode)
	require.Contains(t, res.Output, "no run identifier")
}

func TestMergeRejectsAmbiguousSource(t *testing.T) {
	s := newGitScene(t)

	res := testhelpers.RunCLI(t, s.Workspace.Dir, runIDEnv("b1"),
		"merge", "--branch", "c3", "--revision", "abc123", "--target", "r1336")
	require.Equal(t, 1, res.ExitCode)
	require.Contains(t, res.Output, "ambiguous merge source")
}

func TestRun(t *testing.T) {
	s := newGitScene(t)

	res := testhelpers.RunCLI(t, s.Workspace.Dir, nil,
		"run", "--run-id", "build-7", "--branch", "c3", "--target", "r1336")
	require.Equal(t, 0, res.ExitCode, res.Output)
	require.Contains(t, res.Output, "All 3 steps finished")

	testhelpers.ExpectMessages(t, s.Origin, "master",
		"[Integration Merge] Merged c3 into r1336",
		"[Upmerge] Merged r1336 into r1338",
		"[Upmerge] Merged r1338 into r1340",
		"[Upmerge] Merged r1340 into master",
	)
	testhelpers.ExpectFiles(t, s.Origin, []string{"r1336", "r1338", "r1340", "master"}, "c3.txt")
	testhelpers.ExpectFiles(t, s.Origin, []string{"master"}, "r1336.txt", "r1340.txt")
}

func TestStepByStep(t *testing.T) {
	s := newGitScene(t)
	env := runIDEnv("build-8")

	res := testhelpers.RunCLI(t, s.Workspace.Dir, env, "merge", "--branch", "c3", "--target", "r1336")
	require.Equal(t, 0, res.ExitCode, res.Output)

	// nothing is published before the push step
	testhelpers.ExpectNoMessage(t, s.Origin, "r1336", "[Integration Merge] Merged c3 into r1336")

	res = testhelpers.RunCLI(t, s.Workspace.Dir, env, "upmerge")
	require.Equal(t, 0, res.ExitCode, res.Output)

	res = testhelpers.RunCLI(t, s.Workspace.Dir, env, "push", "--dry-run")
	require.Equal(t, 0, res.ExitCode, res.Output)
	require.Contains(t, res.Output, "r1340")

	res = testhelpers.RunCLI(t, s.Workspace.Dir, env, "push", "--yes")
	require.Equal(t, 0, res.ExitCode, res.Output)

	testhelpers.ExpectMessages(t, s.Origin, "master", "[Upmerge] Merged r1340 into master")

	res = testhelpers.RunCLI(t, s.Workspace.Dir, env, "push", "--yes")
	require.Equal(t, 0, res.ExitCode, res.Output)
	require.Contains(t, res.Output, "Nothing to push")
}

func TestUpmergeWithoutMergeNeedsStart(t *testing.T) {
	s := newGitScene(t)

	res := testhelpers.RunCLI(t, s.Workspace.Dir, runIDEnv("build-9"), "upmerge")
	require.Equal(t, 1, res.ExitCode)
	require.Contains(t, res.Output, "no --start given")
}

func TestChain(t *testing.T) {
	s := newGitScene(t)

	res := testhelpers.RunCLI(t, s.Workspace.Dir, nil, "chain", "r1336")
	require.Equal(t, 0, res.ExitCode, res.Output)
	require.Equal(t, "r1336\nr1338\nr1340\nmaster", res.Output)

	res = testhelpers.RunCLI(t, s.Workspace.Dir, nil, "chain", "c3")
	require.Equal(t, 1, res.ExitCode)
	require.Contains(t, res.Output, "not a release branch and not the trunk")
}

func TestUpmergeConflictAndContinue(t *testing.T) {
	s := newGitScene(t)
	ws := s.Workspace

	require.NoError(t, ws.Checkout("r1336"))
	require.NoError(t, ws.CommitFile("shared.txt", "from r1336\n", "shared on r1336"))
	require.NoError(t, ws.Checkout("r1340"))
	require.NoError(t, ws.CommitFile("shared.txt", "from r1340\n", "shared on r1340"))
	require.NoError(t, ws.Checkout("master"))

	env := runIDEnv("build-10")
	res := testhelpers.RunCLI(t, s.Workspace.Dir, env, "upmerge", "--start", "r1336")
	require.Equal(t, 1, res.ExitCode)
	require.Contains(t, res.Output, "upmerge stopped at r1338 -> r1340")
	require.Contains(t, res.Output, "upmerge --continue")

	res = testhelpers.RunCLI(t, s.Workspace.Dir, nil, "upmerge", "--continue")
	require.Equal(t, 1, res.ExitCode)
	require.Contains(t, res.Output, "not merged into r1340 yet")

	// resolve by hand on r1340
	require.NoError(t, os.WriteFile(filepath.Join(ws.Dir, "shared.txt"), []byte("both\n"), 0600))
	_, err := ws.Run("add", "shared.txt")
	require.NoError(t, err)
	_, err = ws.Run("commit", "-q", "--no-edit")
	require.NoError(t, err)

	res = testhelpers.RunCLI(t, s.Workspace.Dir, nil, "upmerge", "--continue")
	require.Equal(t, 0, res.ExitCode, res.Output)

	res = testhelpers.RunCLI(t, s.Workspace.Dir, env, "push", "--yes")
	require.Equal(t, 0, res.ExitCode, res.Output)

	content, err := s.Origin.ReadFile("master", "shared.txt")
	require.NoError(t, err)
	require.Equal(t, "both", content)
	testhelpers.ExpectMessages(t, s.Origin, "master",
		"[Upmerge] Merged r1336 into r1338",
		"[Upmerge] Merged r1340 into master",
	)

	res = testhelpers.RunCLI(t, s.Workspace.Dir, nil, "upmerge", "--continue")
	require.Equal(t, 1, res.ExitCode)
	require.Contains(t, res.Output, "no interrupted upmerge")
}

func TestReset(t *testing.T) {
	s := newGitScene(t)
	ws := s.Workspace

	require.NoError(t, ws.CommitFile("local.txt", "local\n", "local only"))
	require.NoError(t, os.WriteFile(filepath.Join(ws.Dir, "untracked.txt"), []byte("x"), 0600))

	res := testhelpers.RunCLI(t, ws.Dir, nil, "reset")
	require.Equal(t, 0, res.ExitCode, res.Output)

	require.NoFileExists(t, filepath.Join(ws.Dir, "untracked.txt"))
	require.NoFileExists(t, filepath.Join(ws.Dir, "local.txt"))
	testhelpers.ExpectNoMessage(t, ws, "master", "local only")
}

func TestInit(t *testing.T) {
	s := newGitScene(t)

	res := testhelpers.RunCLI(t, s.Workspace.Dir, nil, "init", "--release-prefix", "rel")
	require.Equal(t, 0, res.ExitCode, res.Output)

	data, err := os.ReadFile(filepath.Join(s.Workspace.Dir, ".gatekeeper.yaml"))
	require.NoError(t, err)
	require.Contains(t, string(data), "backend: git")
	require.Contains(t, string(data), "trunk: master")
	require.Contains(t, string(data), "releasePrefix: rel")

	res = testhelpers.RunCLI(t, s.Workspace.Dir, nil, "init")
	require.Equal(t, 1, res.ExitCode)
	require.Contains(t, res.Output, "already exists")
}

func TestMergeCase(t *testing.T) {
	s := newGitScene(t)
	rev := s.ForkRevision(t)

	cfg := testhelpers.NewMockGitHubServerConfig()
	pr := testhelpers.NewSamplePullRequest(testhelpers.ForkCase())
	pr.Head.Repo.CloneURL = github.String(s.Fork.Dir)
	cfg.PRs[42] = pr
	cfg.Reviews[42] = []*github.PullRequestReview{
		testhelpers.NewSampleReview("alice", "APPROVED", rev, 5),
	}
	server := testhelpers.NewMockGitHubServer(t, cfg)

	configPath := filepath.Join(t.TempDir(), "gatekeeper.yaml")
	config := strings.Join([]string{
		"github:",
		"  owner: owner",
		"  repo: repo",
		"  baseURL: " + server.URL,
	}, "\n")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0600))

	env := runIDEnv("build-11")
	res := testhelpers.RunCLI(t, s.Workspace.Dir, env, "--config", configPath, "merge", "--case", "42")
	require.Equal(t, 0, res.ExitCode, res.Output)

	res = testhelpers.RunCLI(t, s.Workspace.Dir, env, "--config", configPath, "push", "--yes")
	require.Equal(t, 0, res.ExitCode, res.Output)

	testhelpers.ExpectFiles(t, s.Origin, []string{"r1336"}, "fork.txt")
	testhelpers.ExpectMessages(t, s.Origin, "r1336", "[Integration Merge] Merged c3 into r1336")
	paths, _ := cfg.Seen()
	require.Contains(t, paths, "/repos/owner/repo/pulls/42/reviews")
}
