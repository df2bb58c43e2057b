package actions_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"gatekeeper.dev/gatekeeper/internal/output"
	"gatekeeper.dev/gatekeeper/internal/pushqueue"
	"gatekeeper.dev/gatekeeper/internal/release"
	"gatekeeper.dev/gatekeeper/internal/runtime"
	"gatekeeper.dev/gatekeeper/internal/scm/scmtest"
)

const (
	testRunID  = "build-1336"
	testAuthor = "Test Runner <test@runner.com>"
)

type fakeEnv struct {
	rt       *runtime.Context
	fake     *scmtest.Fake
	registry *pushqueue.MemoryRegistry
}

// newFakeEnv builds the release train used by most tests: default with a
// base commit, r1336 -> r1338 -> r1340 each forked from the previous one,
// and feature c3 forked from r1336.
func newFakeEnv(t *testing.T, closing bool) *fakeEnv {
	t.Helper()

	naming, err := release.NewNaming("r", "default")
	require.NoError(t, err)

	fake := scmtest.New(t.TempDir(), naming, closing)
	fake.AddBranch("r1336", "default")
	fake.AddBranch("r1338", "r1336")
	fake.AddBranch("r1340", "r1338")
	fake.AddBranch("c3", "r1336")

	splog, err := output.NewSplogWithConfig(output.Options{Writer: io.Discard})
	require.NoError(t, err)

	registry := pushqueue.NewMemoryRegistry()
	return &fakeEnv{
		rt:       runtime.NewContext(fake, naming, registry, splog),
		fake:     fake,
		registry: registry,
	}
}

func (e *fakeEnv) pending(t *testing.T) []string {
	t.Helper()
	branches, err := e.registry.List(t.Context(), testRunID)
	require.NoError(t, err)
	return branches
}
