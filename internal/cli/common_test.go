package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
)

func TestResolveRunID(t *testing.T) {
	t.Setenv(envRunID, "")
	t.Setenv(envBuildTag, "")

	_, err := requireRunID("  ")
	require.ErrorIs(t, err, gkerrors.ErrNoRunID)

	t.Setenv(envBuildTag, "jenkins-gk-17")
	require.Equal(t, "jenkins-gk-17", resolveRunID(""))

	t.Setenv(envRunID, "build-3")
	require.Equal(t, "build-3", resolveRunID(""))
	require.Equal(t, "manual", resolveRunID("manual"))
}
