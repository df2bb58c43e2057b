package cli

import (
	"github.com/spf13/cobra"

	"gatekeeper.dev/gatekeeper/internal/actions"
	"gatekeeper.dev/gatekeeper/internal/config"
	"gatekeeper.dev/gatekeeper/internal/runtime"
)

// newResetCmd creates the reset command
func newResetCmd(root *rootOptions) *cobra.Command {
	var revision string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard unpushed commits and local changes in the workspace",
		Long: `Discard unpushed commits and local changes in the workspace.

Meant for build agents that reuse a workspace: strips commits that are not
on the remote, reverts uncommitted changes, removes untracked files and
forgets any interrupted upmerge.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, root, func(rt *runtime.Context) error {
				if err := actions.Reset(cmd.Context(), rt, revision); err != nil {
					return err
				}
				return config.ClearContinuationState(rt.RepoRoot, rt.Backend)
			})
		},
	}

	cmd.Flags().StringVar(&revision, "revision", "", "Revision to leave the working copy on (default: trunk)")

	return cmd
}
