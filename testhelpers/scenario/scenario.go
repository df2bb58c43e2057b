// Package scenario drives the gatekeeper steps against a real release train
// with a terse, chainable API for end-to-end tests.
package scenario

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gatekeeper.dev/gatekeeper/internal/actions"
	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
	"gatekeeper.dev/gatekeeper/internal/output"
	"gatekeeper.dev/gatekeeper/internal/release"
	"gatekeeper.dev/gatekeeper/internal/runtime"
	"gatekeeper.dev/gatekeeper/testhelpers"
)

// RunID identifies the build every scenario step runs under
const RunID = "scenario-run"

// Author signs every commit the steps make
const Author = "Gatekeeper Test <gatekeeper@example.com>"

// Scenario combines a Scene with a runtime Context opened on its workspace
type Scenario struct {
	T        *testing.T
	Scene    *testhelpers.Scene
	Context  *runtime.Context
	Template release.Template

	// LastMerge and LastUpmerge hold the results of the latest steps
	LastMerge   *actions.MergeResult
	LastUpmerge *actions.UpmergeResult
}

// NewScenario builds a scene for backend with the given releases and opens
// the workspace. The test is skipped when the backend is not installed.
// The steps run without any user or system git config, like on a fresh
// build agent.
func NewScenario(t *testing.T, backend string, releases ...string) *Scenario {
	t.Helper()
	t.Setenv("GIT_CONFIG_GLOBAL", os.DevNull)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	scene := testhelpers.NewScene(t, backend, releases...)

	splog, err := output.NewSplogWithConfig(output.Options{Writer: io.Discard})
	require.NoError(t, err)

	rt, err := runtime.Open(t.Context(), runtime.Options{Dir: scene.Workspace.Dir, Splog: splog})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	return &Scenario{T: t, Scene: scene, Context: rt}
}

// WithReleaseFile sets the file written on newly provisioned branches
func (s *Scenario) WithReleaseFile(path, content string) *Scenario {
	s.Template = release.Template{Path: path, Content: content}
	return s
}

// Merge runs the gatekeeper merge of the feature branch into target
func (s *Scenario) Merge(target string) *Scenario {
	s.T.Helper()
	res, err := actions.NewGatekeeper(s.Context).Run(s.T.Context(), actions.GatekeeperOptions{
		RunID:    RunID,
		Target:   target,
		Feature:  testhelpers.Feature,
		Source:   actions.LocalSource{Branch: testhelpers.Feature},
		Template: s.Template,
		Author:   Author,
	})
	require.NoError(s.T, err)
	s.LastMerge = res
	return s
}

// MergeRevision runs the gatekeeper merge of a revision pulled from url
func (s *Scenario) MergeRevision(url, revision, target string) *Scenario {
	s.T.Helper()
	res, err := actions.NewGatekeeper(s.Context).Run(s.T.Context(), actions.GatekeeperOptions{
		RunID:    RunID,
		Target:   target,
		Source:   actions.RemoteSource{URL: url, Rev: revision},
		Template: s.Template,
		Author:   Author,
	})
	require.NoError(s.T, err)
	s.LastMerge = res
	return s
}

func (s *Scenario) upmergeOptions() actions.UpmergeOptions {
	return actions.UpmergeOptions{
		RunID:    RunID,
		Template: s.Template,
		Author:   Author,
	}
}

// Upmerge walks the chain starting at start
func (s *Scenario) Upmerge(start string) *Scenario {
	s.T.Helper()
	res, err := actions.NewUpmerger(s.Context).RunFrom(s.T.Context(), start, s.upmergeOptions())
	require.NoError(s.T, err)
	s.LastUpmerge = res
	return s
}

// UpmergeConflict walks the chain starting at start and expects it to stop
// on a conflict, which it returns.
func (s *Scenario) UpmergeConflict(start string) *gkerrors.UpmergeConflictError {
	s.T.Helper()
	res, err := actions.NewUpmerger(s.Context).RunFrom(s.T.Context(), start, s.upmergeOptions())
	var conflict *gkerrors.UpmergeConflictError
	require.True(s.T, errors.As(err, &conflict), "expected an upmerge conflict, got %v", err)
	s.LastUpmerge = res
	return conflict
}

// Resolve settles the conflicted merge in the workspace by writing content
// to path and committing, as an operator would.
func (s *Scenario) Resolve(path, content string) *Scenario {
	s.T.Helper()
	ws := s.Scene.Workspace
	require.NoError(s.T, os.WriteFile(filepath.Join(ws.Dir, path), []byte(content), 0600))
	if ws.Backend == testhelpers.Git {
		testhelpers.Must(ws.Run("add", "--", path))
		testhelpers.Must(ws.Run("commit", "-q", "--no-edit"))
	} else {
		testhelpers.Must(ws.Run("resolve", "-q", "--mark", path))
		testhelpers.Must(ws.Run("commit", "-q", "-m", "Resolved "+path))
	}
	return s
}

// Continue resumes a walk stopped at from -> to. remaining starts at to.
func (s *Scenario) Continue(from, to string, remaining ...string) *Scenario {
	s.T.Helper()
	res, err := actions.NewUpmerger(s.Context).Continue(s.T.Context(), from, to,
		release.Chain(remaining), s.upmergeOptions())
	require.NoError(s.T, err)
	s.LastUpmerge = res
	return s
}

// Pending returns the branches recorded for push
func (s *Scenario) Pending() []string {
	s.T.Helper()
	pending, err := s.Context.Registry.List(s.T.Context(), RunID)
	require.NoError(s.T, err)
	return pending
}

// WriteUntracked creates a file in the workspace without adding it
func (s *Scenario) WriteUntracked(path, content string) *Scenario {
	s.T.Helper()
	full := filepath.Join(s.Scene.Workspace.Dir, path)
	require.NoError(s.T, os.MkdirAll(filepath.Dir(full), 0750))
	require.NoError(s.T, os.WriteFile(full, []byte(content), 0600))
	return s
}

// Push publishes everything recorded for the run
func (s *Scenario) Push() *Scenario {
	s.T.Helper()
	_, err := actions.NewPusher(s.Context).Run(s.T.Context(), RunID)
	require.NoError(s.T, err)
	return s
}

// Origin returns the repository the workspace pushes to
func (s *Scenario) Origin() *testhelpers.Repo {
	return s.Scene.Origin
}
