// Package version provides the version command.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/trailcam-go/internal/buildinfo"
)

// Command creates a new cobra.Command to print build information.
func Command(build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version of trailcam",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), build.String())
		},
	}

	return cmd
}
