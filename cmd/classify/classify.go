// Package classify provides the classify command, which ingests image files
// from disk without starting the HTTP server.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tphakala/trailcam-go/internal/api/v2/dto"
	"github.com/tphakala/trailcam-go/internal/app"
	"github.com/tphakala/trailcam-go/internal/buildinfo"
	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/entities"
	"github.com/tphakala/trailcam-go/internal/ingest"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// options holds the command line flags.
type options struct {
	reclassify uint
}

// Command creates the classify command.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "classify [image...]",
		Short: "Ingest and classify image files",
		Long: `Stores each image, classifies it once with SpeciesNet and prints the
stored predictions as JSON. With --reclassify, classifies a stored image that
has no prediction yet.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.reclassify > 0 {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), settings, build, opts, args)
		},
	}

	setupFlags(cmd, opts)

	return cmd
}

// setupFlags configures flags specific to the classify command.
func setupFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().UintVar(&opts.reclassify, "reclassify", 0, "Classify the stored image with this id")
}

func run(ctx context.Context, out io.Writer, settings *conf.Settings, build *buildinfo.Context, opts *options, files []string) error {
	central, err := app.NewLogger(settings)
	if err != nil {
		return err
	}
	defer func() { _ = central.Close() }()

	a, err := app.New(ctx, settings, build, central)
	if err != nil {
		return err
	}
	defer a.Close()
	a.Start(ctx)

	if opts.reclassify > 0 {
		rec, err := a.Pipeline.Reclassify(ctx, opts.reclassify)
		if err != nil {
			return describe(err)
		}
		return writeJSON(out, dto.NewPredictionResponse(rec))
	}

	return classifyFiles(ctx, out, a.Pipeline, central.Module("classify"), files)
}

// classifyFiles ingests each file in turn. A failing file does not stop the
// rest; the command fails if any file failed.
func classifyFiles(ctx context.Context, out io.Writer, pipeline *ingest.Pipeline, log logger.Logger, files []string) error {
	records := make([]entities.PredictionRecord, 0, len(files))
	failed := 0

	for _, path := range files {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
		if err != nil {
			log.Error("failed to read image", logger.String("path", path), logger.Error(err))
			failed++
			continue
		}

		rec, err := pipeline.Ingest(ctx, ingest.Upload{
			Data:     data,
			Filename: filepath.Base(path),
		})
		if err != nil {
			log.Error("failed to classify image",
				logger.String("path", path),
				logger.String("kind", ingest.KindOf(err).String()),
				logger.Error(err))
			failed++
			continue
		}
		records = append(records, *rec)
	}

	if err := writeJSON(out, dto.NewPredictionList(records)); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(files))
	}
	return nil
}

// describe prefixes a pipeline error with its kind and image id.
func describe(err error) error {
	if id, ok := ingest.ImageIDOf(err); ok {
		return fmt.Errorf("%s (image %d): %w", ingest.KindOf(err), id, err)
	}
	return fmt.Errorf("%s: %w", ingest.KindOf(err), err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
