package actions_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gatekeeper.dev/gatekeeper/internal/actions"
	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
	"gatekeeper.dev/gatekeeper/internal/release"
)

func upmergeOpts() actions.UpmergeOptions {
	return actions.UpmergeOptions{RunID: testRunID, Author: testAuthor}
}

// integrate merges c3 into r1336 so that every hop of the chain has
// something to carry.
func integrate(t *testing.T, env *fakeEnv) {
	t.Helper()
	opts := localMerge("r1336", "c3")
	opts.Offline = true
	_, err := actions.NewGatekeeper(env.rt).Run(t.Context(), opts)
	require.NoError(t, err)
}

func TestUpmergeWalksTheChain(t *testing.T) {
	env := newFakeEnv(t, true)
	integrate(t, env)

	res, err := actions.NewUpmerger(env.rt).RunFrom(t.Context(), "r1336", upmergeOpts())
	require.NoError(t, err)
	require.Equal(t, release.Chain{"r1336", "r1338", "r1340", "default"}, res.Chain)
	require.Equal(t, []string{"r1338", "r1340", "default"}, res.Completed())
	for _, hop := range res.Hops {
		require.Equal(t, actions.HopMerged, hop.Status)
		require.False(t, hop.Created)
	}

	for _, branch := range []string{"r1338", "r1340", "default"} {
		require.True(t, env.fake.Contains(branch, "c3"), branch)
	}
	require.Equal(t, []string{
		"[Integration Merge] Merged c3 into r1336",
		"Closed branch c3",
		"[Upmerge] Merged r1336 into r1338",
		"[Upmerge] Merged r1338 into r1340",
		"[Upmerge] Merged r1340 into default",
	}, env.fake.Messages())
	require.Equal(t, []string{"c3", "default", "r1336", "r1338", "r1340"}, env.pending(t))
}

func TestUpmergeSkipsHopsWithNothingToMerge(t *testing.T) {
	env := newFakeEnv(t, false)

	res, err := actions.NewUpmerger(env.rt).RunFrom(t.Context(), "r1336", upmergeOpts())
	require.NoError(t, err)
	require.Len(t, res.Hops, 3)
	require.Equal(t, actions.HopNoop, res.Hops[0].Status)
	require.Equal(t, actions.HopNoop, res.Hops[1].Status)
	require.Equal(t, actions.HopMerged, res.Hops[2].Status)

	require.Equal(t, []string{"[Upmerge] Merged r1340 into default"}, env.fake.Messages())
	require.Equal(t, []string{"default"}, env.pending(t))
}

func TestUpmergeConflictStopsTheWalk(t *testing.T) {
	env := newFakeEnv(t, true)
	integrate(t, env)
	env.fake.Conflicts["r1338->r1340"] = true

	res, err := actions.NewUpmerger(env.rt).RunFrom(t.Context(), "r1336", upmergeOpts())
	require.ErrorIs(t, err, gkerrors.ErrUpmergeConflict)
	require.ErrorIs(t, err, gkerrors.ErrMergeConflict)

	var conflict *gkerrors.UpmergeConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "r1338", conflict.From)
	require.Equal(t, "r1340", conflict.To)
	require.Equal(t, []string{"r1338"}, conflict.Completed)
	require.Equal(t, []string{"r1338"}, res.Completed())

	require.True(t, env.fake.Contains("r1338", "c3"))
	require.False(t, env.fake.Contains("r1340", "c3"))
	require.False(t, env.fake.Contains("default", "c3"))
	require.Equal(t, []string{"c3", "r1336", "r1338"}, env.pending(t))
}

func TestUpmergeContinue(t *testing.T) {
	env := newFakeEnv(t, true)
	integrate(t, env)
	env.fake.Conflicts["r1338->r1340"] = true

	u := actions.NewUpmerger(env.rt)
	_, err := u.RunFrom(t.Context(), "r1336", upmergeOpts())
	require.ErrorIs(t, err, gkerrors.ErrUpmergeConflict)

	_, err = u.Continue(t.Context(), "r1338", "r1340", release.Chain{"r1340", "default"}, upmergeOpts())
	require.ErrorContains(t, err, "not merged")

	// the operator resolves the conflict by hand
	delete(env.fake.Conflicts, "r1338->r1340")
	require.NoError(t, env.fake.UpdateClean(t.Context(), "r1340"))
	require.NoError(t, env.fake.MergeInto(t.Context(), "r1338", ""))
	require.NoError(t, env.fake.Commit(t.Context(), "Resolved r1338 into r1340", testAuthor))

	res, err := u.Continue(t.Context(), "r1338", "r1340", release.Chain{"r1340", "default"}, upmergeOpts())
	require.NoError(t, err)
	require.Equal(t, []string{"r1340", "default"}, res.Completed())
	require.True(t, env.fake.Contains("default", "c3"))
	require.Equal(t, []string{"c3", "default", "r1336", "r1338", "r1340"}, env.pending(t))
}

func TestUpmergeProvisionsMissingStart(t *testing.T) {
	env := newFakeEnv(t, true)

	res, err := actions.NewUpmerger(env.rt).RunFrom(t.Context(), "r1337", upmergeOpts())
	require.NoError(t, err)
	require.Equal(t, release.Chain{"r1337", "r1338", "r1340", "default"}, res.Chain)
	require.True(t, env.fake.Contains("r1337", "r1336"))
	require.Len(t, res.Hops, 3)
	for _, hop := range res.Hops {
		require.Equal(t, actions.HopMerged, hop.Status)
	}
	require.Equal(t, "[Release] Created release branch r1337", env.fake.Messages()[0])
	require.Contains(t, env.pending(t), "r1337")
}

func TestUpmergeFromTrunk(t *testing.T) {
	env := newFakeEnv(t, true)

	res, err := actions.NewUpmerger(env.rt).RunFrom(t.Context(), "default", upmergeOpts())
	require.NoError(t, err)
	require.Equal(t, release.Chain{"default"}, res.Chain)
	require.Empty(t, res.Hops)
	require.Empty(t, env.fake.Commits)
	require.Empty(t, env.pending(t))
}

func TestUpmergeErrors(t *testing.T) {
	t.Run("feature branch start", func(t *testing.T) {
		env := newFakeEnv(t, true)
		_, err := actions.NewUpmerger(env.rt).RunFrom(t.Context(), "c3", upmergeOpts())
		require.ErrorIs(t, err, gkerrors.ErrInvalidStartBranch)
	})

	t.Run("ambiguous chain", func(t *testing.T) {
		env := newFakeEnv(t, true)
		env.fake.AddBranch("r01338", "r1336")
		_, err := actions.NewUpmerger(env.rt).RunFrom(t.Context(), "r1336", upmergeOpts())
		require.ErrorIs(t, err, gkerrors.ErrAmbiguousChain)
		require.Empty(t, env.fake.Commits)
	})

	t.Run("no run id", func(t *testing.T) {
		env := newFakeEnv(t, true)
		opts := upmergeOpts()
		opts.RunID = ""
		_, err := actions.NewUpmerger(env.rt).RunFrom(t.Context(), "r1336", opts)
		require.ErrorIs(t, err, gkerrors.ErrNoRunID)
	})
}
