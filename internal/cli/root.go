// Package cli wires the gatekeeper steps to cobra commands.
package cli

import (
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	dir        string
	configPath string
	runID      string
	debug      bool
	quiet      bool
}

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "gatekeeper",
		Short: "Gatekeeper merges approved changes into release branches and upmerges them to trunk",
		Long: `Gatekeeper merges approved changes into release branches and upmerges them to trunk.

A build runs the steps in order: merge the approved change into its release
branch, upmerge that branch through every later release into the trunk, then
push every touched branch at once. Steps of one build share a run id.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.dir, "dir", "C", "", "Workspace directory (default: current directory)")
	flags.StringVar(&opts.configPath, "config", "", "Config file (default: <workspace>/.gatekeeper.yaml)")
	flags.StringVar(&opts.runID, "run-id", "", "Build run id (default: $GATEKEEPER_RUN_ID, then $BUILD_TAG)")
	flags.BoolVar(&opts.debug, "debug", false, "Print debug output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress console output; the log file and failures are still written")

	rootCmd.AddCommand(
		newMergeCmd(opts),
		newUpmergeCmd(opts),
		newPushCmd(opts),
		newRunCmd(opts),
		newChainCmd(opts),
		newResetCmd(opts),
		newInitCmd(opts),
		newVersionCmd(version, commit, date),
	)

	return rootCmd
}
