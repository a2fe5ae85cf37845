// Package config provides the config command, which prints the effective
// configuration.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/trailcam-go/internal/conf"
)

// Command creates the config command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Prints the configuration after defaults, config file and environment overrides are applied. Credentials are masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if used := conf.ConfigFileUsed(); used != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "# loaded from %s\n", used)
			}
			return conf.WriteYAML(cmd.OutOrStdout(), settings)
		},
	}

	return cmd
}
