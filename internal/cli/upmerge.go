package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gatekeeper.dev/gatekeeper/internal/actions"
	"gatekeeper.dev/gatekeeper/internal/config"
	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
	"gatekeeper.dev/gatekeeper/internal/output"
	"gatekeeper.dev/gatekeeper/internal/pushqueue"
	"gatekeeper.dev/gatekeeper/internal/release"
	"gatekeeper.dev/gatekeeper/internal/runtime"
)

func upmergeOptions(rt *runtime.Context, runID string) actions.UpmergeOptions {
	return actions.UpmergeOptions{
		RunID:    runID,
		Template: rt.Config.ReleaseTemplate(),
		Messages: rt.Config.Messages,
		Author:   rt.Config.AuthorOrDefault(),
	}
}

// upmergeStart returns start, or the target recorded by the run's merge
func upmergeStart(ctx context.Context, rt *runtime.Context, runID, start string) (string, error) {
	if start != "" {
		return start, nil
	}
	meta, err := rt.Registry.Meta(ctx, runID)
	if err != nil {
		return "", err
	}
	if target := meta[pushqueue.MetaTarget]; target != "" {
		return target, nil
	}
	return "", fmt.Errorf("no --start given and run %s has not merged anything", runID)
}

// runUpmerge walks the chain from start, recording where it stopped on a
// conflict so that upmerge --continue can resume.
func runUpmerge(ctx context.Context, rt *runtime.Context, runID, start string) (*actions.UpmergeResult, error) {
	res, err := actions.NewUpmerger(rt).RunFrom(ctx, start, upmergeOptions(rt, runID))
	if err != nil {
		return res, suspendUpmerge(rt, runID, res, err)
	}
	return res, nil
}

func suspendUpmerge(rt *runtime.Context, runID string, res *actions.UpmergeResult, err error) error {
	var conflict *gkerrors.UpmergeConflictError
	if !errors.As(err, &conflict) || res == nil {
		return err
	}

	remaining := res.Chain
	for i, b := range res.Chain {
		if b == conflict.To {
			remaining = res.Chain[i:]
			break
		}
	}
	state := &config.ContinuationState{
		RunID:     runID,
		From:      conflict.From,
		To:        conflict.To,
		Remaining: remaining,
	}
	if perr := config.PersistContinuationState(rt.RepoRoot, rt.Backend, state); perr != nil {
		rt.Splog.Warn("Failed to record the interrupted upmerge: %v", perr)
		return err
	}

	rt.Splog.Error("Conflict merging %s", output.FormatHop(conflict.From, conflict.To))
	rt.Splog.Tip("Resolve the conflict, commit on %s, then run: gatekeeper upmerge --continue", conflict.To)
	return err
}

func continueUpmerge(ctx context.Context, rt *runtime.Context) (*actions.UpmergeResult, error) {
	state, err := config.GetContinuationState(rt.RepoRoot, rt.Backend)
	if err != nil {
		return nil, err
	}
	rt.Splog.Info("Continuing run %s after %s", state.RunID, output.FormatHop(state.From, state.To))

	res, err := actions.NewUpmerger(rt).Continue(ctx, state.From, state.To,
		release.Chain(state.Remaining), upmergeOptions(rt, state.RunID))
	if err != nil {
		var conflict *gkerrors.UpmergeConflictError
		if errors.As(err, &conflict) && res != nil {
			return res, suspendUpmerge(rt, state.RunID, res, err)
		}
		return res, err
	}
	return res, config.ClearContinuationState(rt.RepoRoot, rt.Backend)
}

func printUpmergeResult(rt *runtime.Context, res *actions.UpmergeResult) {
	if res == nil || len(res.Hops) == 0 {
		return
	}
	merged := 0
	for _, h := range res.Hops {
		if h.Status == actions.HopMerged {
			merged++
		}
	}
	rt.Splog.Success("Upmerged %s (%d merged, %d already up to date)",
		output.FormatChain(res.Chain), merged, len(res.Hops)-merged)
}

// newUpmergeCmd creates the upmerge command
func newUpmergeCmd(root *rootOptions) *cobra.Command {
	var (
		start string
		cont  bool
	)

	cmd := &cobra.Command{
		Use:   "upmerge",
		Short: "Merge a release branch into every later release and the trunk",
		Long: `Merge a release branch into every later release and the trunk.

The chain starts at --start, or at the branch the run's merge step landed
on, and visits every later release in ascending order before the trunk.
Each branch is merged into the next. Missing release branches are
provisioned. A conflict stops the walk; resolve it, commit, and run
'gatekeeper upmerge --continue' to finish the chain.`,
		Example: `  gatekeeper upmerge --run-id build-42
  gatekeeper upmerge --run-id build-42 --start r1336
  gatekeeper upmerge --continue`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, root, func(rt *runtime.Context) error {
				if cont {
					res, err := continueUpmerge(cmd.Context(), rt)
					if err != nil {
						return err
					}
					printUpmergeResult(rt, res)
					return nil
				}

				runID, err := requireRunID(root.runID)
				if err != nil {
					return err
				}
				from, err := upmergeStart(cmd.Context(), rt, runID, start)
				if err != nil {
					return err
				}
				res, err := runUpmerge(cmd.Context(), rt, runID, from)
				if err != nil {
					return err
				}
				printUpmergeResult(rt, res)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Branch the chain starts at (default: the run's merge target)")
	cmd.Flags().BoolVar(&cont, "continue", false, "Resume an upmerge stopped by a conflict")
	cmd.MarkFlagsMutuallyExclusive("start", "continue")

	return cmd
}
