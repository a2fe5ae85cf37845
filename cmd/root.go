package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/trailcam-go/cmd/classify"
	configcmd "github.com/tphakala/trailcam-go/cmd/config"
	deletecmd "github.com/tphakala/trailcam-go/cmd/delete"
	"github.com/tphakala/trailcam-go/cmd/serve"
	"github.com/tphakala/trailcam-go/cmd/version"
	"github.com/tphakala/trailcam-go/internal/buildinfo"
	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "trailcam",
		Short:         "Camera trap image ingestion service",
		Long:          "Stores camera trap images, classifies them with SpeciesNet and serves the predictions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	versionCmd := version.Command(build)
	subcommands := []*cobra.Command{
		serve.Command(settings, build),
		classify.Command(settings, build),
		configcmd.Command(settings),
		deletecmd.Command(settings, build),
		versionCmd,
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version needs no configuration
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(settings, configFile)
	}

	return rootCmd
}

// initialize loads configuration after flags are parsed, so bound flags
// override file and environment values.
func initialize(settings *conf.Settings, configFile string) error {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to config.yaml (default: ./config.yaml, ~/.config/trailcam, /etc/trailcam)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
