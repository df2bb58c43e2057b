package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"gatekeeper.dev/gatekeeper/internal/actions"
	"gatekeeper.dev/gatekeeper/internal/output"
	"gatekeeper.dev/gatekeeper/internal/runtime"
)

// confirmPush asks before publishing when a person is at the terminal
func confirmPush(ctx context.Context, rt *runtime.Context, runID string, yes bool) (bool, error) {
	if yes || !output.IsTTY() {
		return true, nil
	}
	pending, err := actions.NewPusher(rt).Pending(ctx, runID)
	if err != nil {
		return false, err
	}
	if len(pending) == 0 {
		return true, nil
	}
	rt.Splog.Info("Pending for run %s: %s", runID, output.FormatBranchList(pending))
	return output.Confirm(fmt.Sprintf("Push %d branches?", len(pending)), true)
}

// newPushCmd creates the push command
func newPushCmd(root *rootOptions) *cobra.Command {
	var (
		yes    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push every branch the run merged into",
		Long: `Push every branch the run merged into, in a single push.

The pending set is consumed by the push and is not restored when the push
fails; rerun the merge and upmerge steps to rebuild it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runID, err := requireRunID(root.runID)
			if err != nil {
				return err
			}
			return run(cmd, root, func(rt *runtime.Context) error {
				pusher := actions.NewPusher(rt)
				if dryRun {
					pending, err := pusher.Pending(cmd.Context(), runID)
					if err != nil {
						return err
					}
					rt.Splog.Info("Would push %s", output.FormatBranchList(pending))
					return nil
				}

				ok, err := confirmPush(cmd.Context(), rt, runID, yes)
				if err != nil {
					return err
				}
				if !ok {
					rt.Splog.Info("Push cancelled")
					return nil
				}
				_, err = pusher.Run(cmd.Context(), runID)
				return err
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the pending branches without pushing")

	return cmd
}
