package actions_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gatekeeper.dev/gatekeeper/testhelpers"
	"gatekeeper.dev/gatekeeper/testhelpers/scenario"
)

var releases = []string{"r1336", "r1338", "r1340"}

// expectTrain asserts the files of every branch after a change landed on
// r1336 and was upmerged: each branch holds base.txt, the merged files, its
// own file and those of the releases below it, and nothing from above.
func expectTrain(t *testing.T, origin *testhelpers.Repo, trunk string, merged ...string) {
	t.Helper()
	have := append([]string{"base.txt"}, merged...)
	for i, branch := range releases {
		have = append(have, branch+".txt")
		testhelpers.ExpectFiles(t, origin, []string{branch}, have...)
		for _, later := range releases[i+1:] {
			testhelpers.ExpectNoFiles(t, origin, []string{branch}, later+".txt")
		}
	}
	testhelpers.ExpectFiles(t, origin, []string{trunk}, have...)
}

func TestScenarioMergeAndUpmerge(t *testing.T) {
	for _, backend := range []string{testhelpers.Hg, testhelpers.Git} {
		t.Run(backend, func(t *testing.T) {
			s := scenario.NewScenario(t, backend, releases...).
				Merge("r1336").
				Upmerge("r1336").
				Push()
			origin := s.Origin()
			trunk := s.Scene.Trunk

			require.False(t, s.LastMerge.NoOp)
			require.Equal(t, []string{"r1338", "r1340", trunk}, s.LastUpmerge.Completed())

			expectTrain(t, origin, trunk, "c3.txt")
			testhelpers.ExpectMessages(t, origin, trunk,
				"[Integration Merge] Merged c3 into r1336",
				"[Upmerge] Merged r1336 into r1338",
				"[Upmerge] Merged r1338 into r1340",
				"[Upmerge] Merged r1340 into "+trunk,
			)

			if backend == testhelpers.Hg {
				require.True(t, s.LastMerge.Closed)
				testhelpers.ExpectClosed(t, origin, testhelpers.Feature, true)
				testhelpers.ExpectBranches(t, origin, "default", "r1336", "r1338", "r1340")
			} else {
				require.False(t, s.LastMerge.Closed)
				testhelpers.ExpectClosed(t, origin, testhelpers.Feature, false)
				testhelpers.ExpectBranches(t, origin, "master", "r1336", "r1338", "r1340", testhelpers.Feature)
			}
		})
	}
}

func TestScenarioProvisionsTarget(t *testing.T) {
	for _, backend := range []string{testhelpers.Hg, testhelpers.Git} {
		t.Run(backend, func(t *testing.T) {
			s := scenario.NewScenario(t, backend, "r1336").
				WithReleaseFile("release.txt", "{{release}}").
				Merge("r1338").
				Upmerge("r1338").
				Push()
			origin := s.Origin()
			trunk := s.Scene.Trunk

			require.True(t, s.LastMerge.Created)

			content, err := origin.ReadFile("r1338", "release.txt")
			require.NoError(t, err)
			require.Equal(t, "1338", content)

			testhelpers.ExpectFiles(t, origin, []string{"r1338", trunk}, "base.txt", "r1336.txt", "c3.txt", "release.txt")
			testhelpers.ExpectNoFiles(t, origin, []string{"r1336"}, "c3.txt", "release.txt")
			testhelpers.ExpectMessages(t, origin, "r1338",
				"[Release] Created release branch r1338",
				"[Integration Merge] Merged c3 into r1338",
			)
			testhelpers.ExpectMessages(t, origin, trunk, "[Upmerge] Merged r1338 into "+trunk)
			testhelpers.ExpectNoMessage(t, origin, "r1336", "[Integration Merge] Merged c3 into r1338")
		})
	}
}

func TestScenarioCrossRepository(t *testing.T) {
	for _, backend := range []string{testhelpers.Hg, testhelpers.Git} {
		t.Run(backend, func(t *testing.T) {
			s := scenario.NewScenario(t, backend, releases...)
			rev := s.Scene.ForkRevision(t)

			s.MergeRevision(s.Scene.Fork.Dir, rev, "r1336").
				Upmerge("r1336").
				Push()
			origin := s.Origin()
			trunk := s.Scene.Trunk

			require.Equal(t, rev[:12], s.LastMerge.Source)
			require.False(t, s.LastMerge.Closed)

			expectTrain(t, origin, trunk, "c3.txt", "fork.txt")
			testhelpers.ExpectMessages(t, origin, trunk,
				"fork change",
				"[Integration Merge] Merged "+rev[:12]+" into r1336",
				"[Upmerge] Merged r1336 into r1338",
				"[Upmerge] Merged r1338 into r1340",
				"[Upmerge] Merged r1340 into "+trunk,
			)
		})
	}
}

func TestScenarioUpmergeConflict(t *testing.T) {
	for _, backend := range []string{testhelpers.Hg, testhelpers.Git} {
		t.Run(backend, func(t *testing.T) {
			s := scenario.NewScenario(t, backend, releases...)
			ws := s.Scene.Workspace
			trunk := s.Scene.Trunk

			require.NoError(t, ws.Checkout("r1336"))
			require.NoError(t, ws.CommitFile("shared.txt", "from r1336\n", "shared on r1336"))
			require.NoError(t, ws.Checkout("r1340"))
			require.NoError(t, ws.CommitFile("shared.txt", "from r1340\n", "shared on r1340"))
			require.NoError(t, ws.Checkout(trunk))

			conflict := s.Merge("r1336").UpmergeConflict("r1336")
			require.Equal(t, "r1338", conflict.From)
			require.Equal(t, "r1340", conflict.To)
			require.Equal(t, []string{"r1338"}, conflict.Completed)
			require.Equal(t, []string{"r1338"}, s.LastUpmerge.Completed())

			pending := s.Pending()
			require.Subset(t, pending, []string{"r1336", "r1338"})
			require.NotContains(t, pending, "r1340")
			require.NotContains(t, pending, trunk)

			s.Resolve("shared.txt", "both\n").
				Continue("r1338", "r1340", "r1340", trunk).
				Push()
			require.Equal(t, []string{"r1340", trunk}, s.LastUpmerge.Completed())

			origin := s.Origin()
			content, err := origin.ReadFile(trunk, "shared.txt")
			require.NoError(t, err)
			require.Equal(t, "both", content)
			testhelpers.ExpectMessages(t, origin, trunk,
				"[Integration Merge] Merged c3 into r1336",
				"[Upmerge] Merged r1336 into r1338",
				"[Upmerge] Merged r1340 into "+trunk,
			)
			testhelpers.ExpectNoMessage(t, origin, trunk, "[Upmerge] Merged r1338 into r1340")
		})
	}
}

func TestScenarioLeavesUntrackedFilesOut(t *testing.T) {
	for _, backend := range []string{testhelpers.Hg, testhelpers.Git} {
		t.Run(backend, func(t *testing.T) {
			s := scenario.NewScenario(t, backend, releases...).
				WriteUntracked("build-output.log", "compiler noise\n").
				WriteUntracked("notes/todo.txt", "local notes\n").
				WithReleaseFile("release.txt", "{{release}}").
				Merge("r1342").
				Upmerge("r1342").
				Push()
			origin := s.Origin()
			all := append(append([]string{}, releases...), "r1342", s.Scene.Trunk)

			testhelpers.ExpectFiles(t, origin, []string{"r1342", s.Scene.Trunk}, "c3.txt", "release.txt")
			testhelpers.ExpectNoFiles(t, origin, all, "build-output.log", "notes/todo.txt")
		})
	}
}

func TestScenarioCommitsAsConfiguredAuthor(t *testing.T) {
	s := scenario.NewScenario(t, testhelpers.Git, releases...).
		Merge("r1336").
		Upmerge("r1336").
		Push()

	for _, branch := range []string{"r1336", "r1338", s.Scene.Trunk} {
		who, err := s.Origin().Run("log", "-1", "--format=%an <%ae>|%cn <%ce>", branch)
		require.NoError(t, err)
		require.Equal(t, scenario.Author+"|"+scenario.Author, who)
	}
}

func TestScenarioRepeatedMergeIsNoop(t *testing.T) {
	s := scenario.NewScenario(t, testhelpers.Git, "r1336", "r1338").
		Merge("r1336").
		Push()

	s.Merge("r1336")
	require.True(t, s.LastMerge.NoOp)

	messages, err := s.Origin().Messages("r1336")
	require.NoError(t, err)
	count := 0
	for _, m := range messages {
		if m == "[Integration Merge] Merged c3 into r1336" {
			count++
		}
	}
	require.Equal(t, 1, count)
}
