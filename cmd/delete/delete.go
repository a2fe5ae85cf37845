// Package delete provides the delete command, the administrative removal of
// a stored image together with its prediction.
package delete

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tphakala/trailcam-go/internal/app"
	"github.com/tphakala/trailcam-go/internal/buildinfo"
	"github.com/tphakala/trailcam-go/internal/conf"
)

// Command creates the delete command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <image-id>",
		Short: "Delete a stored image and its prediction",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}
			_, err := parseImageID(args[0])
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := parseImageID(args[0])

			central, err := app.NewLogger(settings)
			if err != nil {
				return err
			}
			defer func() { _ = central.Close() }()

			a, err := app.New(cmd.Context(), settings, build, central)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.DeleteImage(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete image %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted image %d\n", id)
			return nil
		},
	}
}

func parseImageID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid image id %q", arg)
	}
	return uint(id), nil
}
