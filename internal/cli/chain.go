package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"gatekeeper.dev/gatekeeper/internal/actions"
	"gatekeeper.dev/gatekeeper/internal/runtime"
)

// newChainCmd creates the chain command
func newChainCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain [start]",
		Short: "Print the upmerge chain starting at a branch",
		Long: `Print the upmerge chain starting at a branch, one branch per line.
Without an argument the chain starts at the current branch. Nothing is merged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, root, func(rt *runtime.Context) error {
				start := ""
				if len(args) > 0 {
					start = args[0]
				} else {
					current, err := rt.SCM.CurrentBranch(cmd.Context())
					if err != nil {
						return err
					}
					start = current
				}

				chain, err := actions.ResolveChain(cmd.Context(), rt, start)
				if err != nil {
					return err
				}
				for _, branch := range chain {
					fmt.Fprintln(cmd.OutOrStdout(), branch)
				}
				return nil
			})
		},
	}
	return cmd
}
