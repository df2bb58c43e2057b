package actions_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"gatekeeper.dev/gatekeeper/internal/actions"
	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
)

func TestPusher(t *testing.T) {
	t.Run("nothing pending", func(t *testing.T) {
		env := newFakeEnv(t, true)

		res, err := actions.NewPusher(env.rt).Run(t.Context(), testRunID)
		require.NoError(t, err)
		require.True(t, res.NoOp)
		require.Empty(t, env.fake.Pushes)
	})

	t.Run("pushes every pending branch at once", func(t *testing.T) {
		env := newFakeEnv(t, true)
		for _, b := range []string{"r1340", "default", "r1336", "r1338", "c3", "r1336"} {
			require.NoError(t, env.registry.Add(t.Context(), testRunID, b))
		}
		require.NoError(t, env.registry.Add(t.Context(), "other-run", "r2000"))

		p := actions.NewPusher(env.rt)
		pending, err := p.Pending(t.Context(), testRunID)
		require.NoError(t, err)
		require.Equal(t, []string{"c3", "default", "r1336", "r1338", "r1340"}, pending)

		res, err := p.Run(t.Context(), testRunID)
		require.NoError(t, err)
		require.False(t, res.NoOp)
		require.Equal(t, pending, res.Branches)
		require.Equal(t, [][]string{pending}, env.fake.Pushes)
		require.Empty(t, env.pending(t))

		again, err := p.Run(t.Context(), testRunID)
		require.NoError(t, err)
		require.True(t, again.NoOp)
		require.Len(t, env.fake.Pushes, 1)

		others, err := env.registry.List(t.Context(), "other-run")
		require.NoError(t, err)
		require.Equal(t, []string{"r2000"}, others)
	})

	t.Run("failed push is not re-queued", func(t *testing.T) {
		env := newFakeEnv(t, true)
		require.NoError(t, env.registry.Add(t.Context(), testRunID, "r1336"))
		env.fake.Errors["Push"] = errors.New("remote rejected")

		_, err := actions.NewPusher(env.rt).Run(t.Context(), testRunID)
		require.ErrorIs(t, err, gkerrors.ErrPushFailed)
		var pushErr *gkerrors.PushError
		require.ErrorAs(t, err, &pushErr)
		require.Equal(t, []string{"r1336"}, pushErr.Branches)
		require.Empty(t, env.pending(t))
	})
}
