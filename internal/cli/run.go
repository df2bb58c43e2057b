package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gatekeeper.dev/gatekeeper/internal/actions"
	"gatekeeper.dev/gatekeeper/internal/output"
	"gatekeeper.dev/gatekeeper/internal/runtime"
)

const (
	stepMerge = iota
	stepUpmerge
	stepPush
)

// newRunCmd creates the run command
func newRunCmd(root *rootOptions) *cobra.Command {
	flags := &mergeFlags{}
	var noPush bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Merge, upmerge and push in one go",
		Long: `Merge, upmerge and push in one go.

Runs the merge step with the given inputs, upmerges from the merge target
and pushes everything touched. A failing step stops the run and nothing
is pushed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runID, err := requireRunID(root.runID)
			if err != nil {
				return err
			}
			return run(cmd, root, func(rt *runtime.Context) error {
				ctx := cmd.Context()
				opts, err := flags.options(ctx, rt, runID)
				if err != nil {
					return err
				}

				progress := output.NewStepProgress(rt.Splog)
				progress.Start([]string{"merge", "upmerge", "push"})
				defer progress.Complete()

				progress.Update(stepMerge, output.StepRunning, "", nil)
				merged, err := actions.NewGatekeeper(rt).Run(ctx, opts)
				if err != nil {
					progress.Update(stepMerge, output.StepFailed, "", err)
					return err
				}
				detail := fmt.Sprintf("%s into %s", merged.Source, merged.Target)
				if merged.NoOp {
					detail += " (already merged)"
				}
				progress.Update(stepMerge, output.StepDone, detail, nil)

				progress.Update(stepUpmerge, output.StepRunning, "", nil)
				upmerged, err := runUpmerge(ctx, rt, runID, merged.Target)
				if err != nil {
					progress.Update(stepUpmerge, output.StepFailed, "", err)
					return err
				}
				progress.Update(stepUpmerge, output.StepDone, strings.Join(upmerged.Chain, " → "), nil)

				if noPush {
					progress.Update(stepPush, output.StepSkipped, "(--no-push)", nil)
					return nil
				}
				progress.Update(stepPush, output.StepRunning, "", nil)
				pushed, err := actions.NewPusher(rt).Run(ctx, runID)
				if err != nil {
					progress.Update(stepPush, output.StepFailed, "", err)
					return err
				}
				progress.Update(stepPush, output.StepDone, strings.Join(pushed.Branches, ", "), nil)
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&noPush, "no-push", false, "Stop after the upmerge, leaving the branches pending")

	return cmd
}
