// Package serve provides the serve command, which runs the HTTP ingestion API.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/trailcam-go/internal/api"
	"github.com/tphakala/trailcam-go/internal/app"
	"github.com/tphakala/trailcam-go/internal/buildinfo"
	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// Command creates the serve command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingestion API",
		Long:  "Accepts image uploads, classifies each once with SpeciesNet and serves stored images and predictions.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings, build)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("host", "", "Listen host, empty for all interfaces")
	cmd.Flags().StringP("port", "p", "", "Listen port")
	cmd.Flags().String("classifier", "", "SpeciesNet wrapper base URL")

	for key, flag := range map[string]string{
		"webserver.host": "host",
		"webserver.port": "port",
		"classifier.url": "classifier",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}
	return nil
}

func run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	if !settings.WebServer.Enabled {
		return errors.Newf("webserver is disabled in configuration").
			Component("serve").
			Category(errors.CategoryConfiguration).
			Build()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	central, err := app.NewLogger(settings)
	if err != nil {
		return err
	}
	defer func() { _ = central.Close() }()

	log := central.Module("main")
	log.Info("starting trailcam",
		logger.String("version", build.GetVersion()),
		logger.String("build_date", build.GetBuildDate()),
		logger.String("config", conf.ConfigFileUsed()))

	a, err := app.New(ctx, settings, build, central)
	if err != nil {
		log.Error("failed to initialize service", logger.Error(err))
		return err
	}
	defer a.Close()

	a.Start(ctx)

	opts := []api.ServerOption{
		api.WithHealthChecks(a.HealthChecks()...),
		api.WithBuildInfo(build),
		api.WithAccessLogger(central.Module("access")),
	}
	if a.Metrics != nil {
		opts = append(opts, api.WithMetrics(a.Metrics))
	}
	srv, err := api.New(settings, a.Pipeline, a.Query, central.Module("api"), opts...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		// Startup check only; the service runs degraded rather than refusing to start.
		if err := a.Check(gctx); err != nil && gctx.Err() == nil {
			log.Warn("dependency check failed at startup", logger.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", logger.Error(err))
		return err
	}
	log.Info("trailcam stopped")
	return nil
}
