package actions

import (
	"context"
	"fmt"

	"gatekeeper.dev/gatekeeper/internal/output"
	"gatekeeper.dev/gatekeeper/internal/runtime"
	"gatekeeper.dev/gatekeeper/internal/scm"
)

// Reset discards everything in the workspace that is not on the remote:
// unpushed commits, uncommitted changes and untracked files. The working
// copy ends up on revision, or the trunk when revision is empty.
func Reset(ctx context.Context, rt *runtime.Context, revision string) error {
	if revision == "" {
		revision = rt.Naming.Trunk
	}
	// leave any merge in progress first; stripping refuses a dirty working copy
	if err := rt.SCM.UpdateClean(ctx, revision); err != nil {
		return fmt.Errorf("failed to update to %s: %w", revision, err)
	}
	if err := rt.SCM.StripLocalCommits(ctx); err != nil {
		return fmt.Errorf("failed to strip local commits: %w", err)
	}
	if err := scm.ResetWorkspace(ctx, rt.SCM, revision); err != nil {
		return fmt.Errorf("failed to reset workspace: %w", err)
	}
	rt.Splog.Success("Workspace reset to %s", output.ColorBranchName(revision))
	return nil
}
