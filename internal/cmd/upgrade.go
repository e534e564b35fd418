package cmd

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/dotcommander/papermate/internal/errs"
)

const installPkg = "github.com/dotcommander/papermate@latest"

func newUpgradeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade papermate to the latest version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.ErrOrStderr()
			if !rt.flags.Quiet {
				fmt.Fprintf(w, "Current version: %s\n", rt.build.Version)
				fmt.Fprintf(w, "Upgrading via go install %s ...\n", installPkg)
			}

			gobin, err := exec.LookPath("go")
			if err != nil {
				return errs.Wrap(err, "go was not found in PATH.")
			}

			install := exec.CommandContext(cmd.Context(), gobin, "install", installPkg)
			install.Stdout = cmd.OutOrStdout()
			install.Stderr = w
			if err := install.Run(); err != nil {
				return errs.Wrap(err, "go install failed.")
			}

			if !rt.flags.Quiet {
				fmt.Fprintln(w, "Upgrade complete.")
			}
			return nil
		},
	}
}
