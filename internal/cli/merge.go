package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"gatekeeper.dev/gatekeeper/internal/actions"
	"gatekeeper.dev/gatekeeper/internal/output"
	"gatekeeper.dev/gatekeeper/internal/runtime"
)

// mergeFlags are the inputs of a gatekeeper merge, shared with run
type mergeFlags struct {
	caseNumber int
	repoURL    string
	revision   string
	branch     string
	target     string
	feature    string
	offline    bool
}

func (f *mergeFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.caseNumber, "case", 0, "Review case (pull request number) to take the source, feature and target from")
	cmd.Flags().StringVar(&f.repoURL, "repo", "", "Repository to pull the approved revision from (default: the workspace's remote)")
	cmd.Flags().StringVar(&f.revision, "revision", "", "Approved revision to merge")
	cmd.Flags().StringVar(&f.branch, "branch", "", "Local feature branch to merge instead of a revision")
	cmd.Flags().StringVar(&f.target, "target", "", "Release branch to merge into")
	cmd.Flags().StringVar(&f.feature, "feature", "", "Feature branch name to close after the merge (default: --branch)")
	cmd.Flags().BoolVar(&f.offline, "offline", false, "Do not pull before merging a local branch")
}

// options builds the merge options, filling the gaps from the review case
func (f *mergeFlags) options(ctx context.Context, rt *runtime.Context, runID string) (actions.GatekeeperOptions, error) {
	repoURL, revision, branch := f.repoURL, f.revision, f.branch
	target, feature := f.target, f.feature

	if f.caseNumber > 0 {
		c, approved, err := resolveCase(ctx, rt, f.caseNumber, revision == "" && branch == "")
		if err != nil {
			return actions.GatekeeperOptions{}, err
		}
		if target == "" {
			target = c.Target
		}
		if feature == "" {
			feature = c.Feature
		}
		if revision == "" && branch == "" {
			revision = approved
		}
		if repoURL == "" && revision != "" && !c.SameRepository {
			repoURL = c.RepoURL
		}
	}
	if feature == "" {
		feature = branch
	}
	if target == "" {
		return actions.GatekeeperOptions{}, fmt.Errorf("no target branch: pass --target or --case")
	}

	source, err := actions.NewSource(repoURL, revision, branch)
	if err != nil {
		return actions.GatekeeperOptions{}, err
	}

	cfg := rt.Config
	return actions.GatekeeperOptions{
		RunID:    runID,
		Target:   target,
		Feature:  feature,
		Source:   source,
		Template: cfg.ReleaseTemplate(),
		Messages: cfg.Messages,
		Author:   cfg.AuthorOrDefault(),
		Offline:  f.offline,
	}, nil
}

func printMergeResult(rt *runtime.Context, res *actions.MergeResult) {
	splog := rt.Splog
	if res.Created {
		splog.Info("Provisioned %s", output.ColorBranchName(res.Target))
	}
	if res.NoOp {
		splog.Info("Nothing merged: %s already contains %s", output.ColorBranchName(res.Target), res.Source)
	}
}

// newMergeCmd creates the merge command
func newMergeCmd(root *rootOptions) *cobra.Command {
	flags := &mergeFlags{}

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge an approved change into its release branch",
		Long: `Merge an approved change into its release branch.

The change is either a revision (--revision, pulled from --repo or the
workspace's remote) or a local branch (--branch). With --case the feature,
target and approved revision are looked up on GitHub. A missing release
branch is provisioned from the closest lower release. On backends with
closable branches the feature branch is closed once fully merged.

The merged branches are recorded for the push step of the same run.`,
		Example: `  gatekeeper merge --run-id build-42 --branch c3 --target r1336
  gatekeeper merge --run-id build-42 --repo ../contrib --revision 9f1c2b3a --target r1336
  gatekeeper merge --run-id build-42 --case 117`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runID, err := requireRunID(root.runID)
			if err != nil {
				return err
			}
			return run(cmd, root, func(rt *runtime.Context) error {
				opts, err := flags.options(cmd.Context(), rt, runID)
				if err != nil {
					return err
				}
				res, err := actions.NewGatekeeper(rt).Run(cmd.Context(), opts)
				if err != nil {
					return err
				}
				printMergeResult(rt, res)
				return nil
			})
		},
	}
	flags.register(cmd)

	return cmd
}
