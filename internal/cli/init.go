package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"gatekeeper.dev/gatekeeper/internal/config"
	"gatekeeper.dev/gatekeeper/internal/runtime"
)

// newInitCmd creates the init command
func newInitCmd(root *rootOptions) *cobra.Command {
	var (
		trunk  string
		prefix string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a .gatekeeper.yaml for the workspace",
		Long: `Write a .gatekeeper.yaml for the workspace with the detected backend and
its default trunk. Commit the file: steps that clean the working copy
remove untracked files.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, root, func(rt *runtime.Context) error {
				path := filepath.Join(rt.RepoRoot, config.FileName)
				if _, err := os.Stat(path); err == nil && !force {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}

				cfg := &config.Config{
					Backend:       rt.Backend,
					Trunk:         trunk,
					ReleasePrefix: prefix,
				}
				if cfg.Trunk == "" {
					cfg.Trunk = rt.Naming.Trunk
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
				if err := cfg.Save(rt.RepoRoot); err != nil {
					return err
				}
				rt.Splog.Success("Wrote %s", path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&trunk, "trunk", "", "Trunk branch (default: master for git, default for hg)")
	cmd.Flags().StringVar(&prefix, "release-prefix", "", "Prefix of release branch names (default: r)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}
