package scm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"gatekeeper.dev/gatekeeper/internal/release"
	"gatekeeper.dev/gatekeeper/internal/scm"
	"gatekeeper.dev/gatekeeper/internal/scm/scmtest"
)

func newFake(t *testing.T, closing bool) *scmtest.Fake {
	t.Helper()
	naming, err := release.NewNaming("r", "default")
	require.NoError(t, err)
	return scmtest.New(t.TempDir(), naming, closing)
}

func TestBranchNames(t *testing.T) {
	names := scm.BranchNames([]scm.Branch{
		{Name: "r1338"},
		{Name: "default"},
		{Name: "r1336", Closed: true},
		{Name: "r1338"},
	})
	require.Equal(t, []string{"default", "r1336", "r1338"}, names)
}

func TestHasBranch(t *testing.T) {
	ctx := context.Background()
	fake := newFake(t, true)
	fake.AddBranch("r1336", "default")
	fake.AddBranch("c3", "r1336")
	require.NoError(t, fake.CloseBranch(ctx, "c3", "close", "bot"))

	t.Run("open branch", func(t *testing.T) {
		ok, err := scm.HasBranch(ctx, fake, "r1336", false)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("closed branch only with includeClosed", func(t *testing.T) {
		ok, err := scm.HasBranch(ctx, fake, "c3", false)
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = scm.HasBranch(ctx, fake, "c3", true)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("listing failure", func(t *testing.T) {
		fake.Errors["ListBranches"] = errors.New("boom")
		_, err := scm.HasBranch(ctx, fake, "r1336", true)
		require.Error(t, err)
	})
}

func TestResetWorkspace(t *testing.T) {
	ctx := context.Background()
	fake := newFake(t, false)
	fake.AddBranch("r1336", "default")

	require.NoError(t, scm.ResetWorkspace(ctx, fake, "r1336"))
	require.Equal(t, []string{"UpdateClean", "CleanWorkingCopy"}, fake.Calls)

	current, err := fake.CurrentBranch(ctx)
	require.NoError(t, err)
	require.Equal(t, "r1336", current)
}
