package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
	"gatekeeper.dev/gatekeeper/internal/runtime"
)

// Environment variables consulted for the run id, in order
const (
	envRunID    = "GATEKEEPER_RUN_ID"
	envBuildTag = "BUILD_TAG"
)

// resolveRunID returns the run id from the flag or the environment
func resolveRunID(flag string) string {
	for _, v := range []string{flag, os.Getenv(envRunID), os.Getenv(envBuildTag)} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// requireRunID is resolveRunID for steps that cannot run without one
func requireRunID(flag string) (string, error) {
	runID := resolveRunID(flag)
	if runID == "" {
		return "", gkerrors.ErrNoRunID
	}
	return runID, nil
}

// run opens the workspace, hands it to fn and releases it afterwards
func run(cmd *cobra.Command, opts *rootOptions, fn func(rt *runtime.Context) error) error {
	rt, err := runtime.Open(cmd.Context(), runtime.Options{
		Dir:        opts.dir,
		ConfigPath: opts.configPath,
		Debug:      opts.debug,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.Splog.Debug("Failed to close workspace: %v", err)
		}
	}()
	rt.Splog.SetQuiet(opts.quiet)
	return fn(rt)
}
