// Package app assembles the ingestion service from settings. The serve and
// classify commands share it.
package app

import (
	"context"
	"fmt"
	"time"

	v2api "github.com/tphakala/trailcam-go/internal/api/v2"
	"github.com/tphakala/trailcam-go/internal/buildinfo"
	"github.com/tphakala/trailcam-go/internal/classifier"
	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/datastore"
	"github.com/tphakala/trailcam-go/internal/datastore/v2/repository"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/events"
	"github.com/tphakala/trailcam-go/internal/imagestore"
	"github.com/tphakala/trailcam-go/internal/ingest"
	"github.com/tphakala/trailcam-go/internal/logger"
	"github.com/tphakala/trailcam-go/internal/observability"
	"github.com/tphakala/trailcam-go/internal/observability/metrics"
	"github.com/tphakala/trailcam-go/internal/predictionstore"
	"github.com/tphakala/trailcam-go/internal/query"
	"github.com/tphakala/trailcam-go/internal/telemetry"
)

// healthCheckTimeout bounds a single dependency check.
const healthCheckTimeout = 5 * time.Second

// Logs hands out module loggers. *logger.CentralLogger satisfies it, so
// per-module outputs such as the classifier log file take effect.
type Logs interface {
	Module(name string) logger.Logger
}

// App holds the wired components.
type App struct {
	Settings *conf.Settings
	Build    *buildinfo.Context

	DB          datastore.Manager
	Images      *imagestore.Store
	Classifier  *classifier.Client
	Predictions *predictionstore.Store
	Pipeline    *ingest.Pipeline
	Query       *query.Service
	Metrics     *observability.Metrics

	mqtt   *events.MQTTPublisher
	bus    *events.Bus
	sentry bool
	logs   Logs
	log    logger.Logger
}

// New opens the store and builds every component. Nothing touches the
// network besides the database and, for the s3 backend, the bucket check.
func New(ctx context.Context, settings *conf.Settings, build *buildinfo.Context, logs Logs) (*App, error) {
	log := logs.Module("app")
	a := &App{Settings: settings, Build: build, logs: logs, log: log}

	sentryEnabled, err := telemetry.InitSentry(settings, build.Release(), logs.Module("telemetry"))
	if err != nil {
		return nil, err
	}
	a.sentry = sentryEnabled

	if settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			a.Close()
			return nil, err
		}
		m.InstallErrorHook()
		a.Metrics = m
	}

	db, err := datastore.Open(ctx, settings, logs.Module("datastore"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.DB = db

	images, err := imagestore.NewFromSettings(ctx, settings,
		repository.NewImageRepository(db.DB()), logs.Module("imagestore"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Images = images

	var clsOpts []classifier.Option
	if a.Metrics != nil {
		clsOpts = append(clsOpts, classifier.WithObserver(a.Metrics.Classifier))
	}
	a.Classifier = classifier.New(&settings.Classifier, logs.Module("classifier"), clsOpts...)

	a.Predictions = predictionstore.New(repository.NewPredictionRepository(db.DB()), logs.Module("predictionstore"))

	pipelineOpts := []ingest.Option{ingest.WithPublisher(a.publisher())}
	if a.Metrics != nil {
		pipelineOpts = append(pipelineOpts, ingest.WithMetrics(a.Metrics.Ingest))
	}
	a.Pipeline = ingest.New(a.Images, a.Classifier, a.Predictions, ingest.Limits{
		MaxUploadSize:     settings.Ingest.MaxUploadSize,
		AllowedTypes:      settings.Ingest.AllowedTypes,
		AllowedExtensions: settings.Ingest.AllowedExtensions,
	}, logs.Module("ingest"), pipelineOpts...)

	var queryOpts []query.Option
	if settings.Cache.Enabled {
		queryOpts = append(queryOpts, query.WithCache(settings.Cache.TTL))
	}
	a.Query = query.New(a.Images, a.Predictions, logs.Module("query"), queryOpts...)

	log.Info("service assembled",
		logger.String("image_backend", a.Images.Backend()),
		logger.Bool("mqtt", settings.MQTT.Enabled),
		logger.Bool("metrics", a.Metrics != nil),
		logger.Bool("sentry", a.sentry),
		logger.Bool("cache", settings.Cache.Enabled))
	return a, nil
}

// publisher returns the event sink for the pipeline: an MQTT consumer behind
// the async bus when MQTT is enabled, otherwise a no-op.
func (a *App) publisher() events.Publisher {
	if !a.Settings.MQTT.Enabled {
		return events.Nop{}
	}

	var mqttOpts []events.MQTTOption
	if a.Metrics != nil {
		mqttOpts = append(mqttOpts, events.WithPublishObserver(a.Metrics.Events))
	}
	a.mqtt = events.NewMQTTPublisher(events.ConfigFromSettings(a.Settings), a.logs.Module("mqtt"), mqttOpts...)

	a.bus = events.NewBus(events.DefaultBusConfig(), a.logs.Module("events"))
	if err := a.bus.RegisterConsumer(a.mqtt); err != nil {
		a.log.Warn("failed to register MQTT consumer", logger.Error(err))
	}
	if a.Metrics != nil {
		a.Metrics.Events.WatchBus(func() metrics.BusCounts { return metrics.BusCounts(a.bus.Stats()) })
	}
	return a.bus
}

// Start connects to the MQTT broker when enabled. A broker that cannot be
// reached is logged and retried by the client; uploads keep working.
func (a *App) Start(ctx context.Context) {
	if a.mqtt == nil {
		return
	}
	if err := a.mqtt.Connect(ctx); err != nil {
		a.log.Warn("MQTT broker unavailable, prediction events will be dropped until it connects",
			logger.String("broker", a.Settings.MQTT.Broker),
			logger.Error(err))
	}
}

// HealthChecks lists the dependency checks served by the health endpoint.
func (a *App) HealthChecks() []v2api.HealthCheck {
	return []v2api.HealthCheck{
		{Name: "database", Check: a.DB.Ping},
		{Name: "imagestore", Check: a.Images.Ping},
		{Name: "classifier", Check: a.Classifier.Health},
	}
}

// Check runs every health check once and joins the failures.
func (a *App) Check(ctx context.Context) error {
	var errs []error
	for _, hc := range a.HealthChecks() {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		if err := hc.Check(checkCtx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hc.Name, err))
		}
		cancel()
	}
	return errors.Join(errs...)
}

// DeleteImage removes an image with its prediction and stored object, then
// drops the cached lookups that pointed at them.
func (a *App) DeleteImage(ctx context.Context, id uint) error {
	var predictionID uint
	pred, err := a.Predictions.FetchByImageID(ctx, id)
	switch {
	case err == nil:
		predictionID = pred.ID
	case !errors.Is(err, repository.ErrPredictionNotFound):
		return err
	}

	if err := a.Images.Delete(ctx, id); err != nil {
		return err
	}
	a.Query.Forget(id, predictionID)

	a.log.Info("image deleted",
		logger.Uint64("image_id", uint64(id)),
		logger.Uint64("prediction_id", uint64(predictionID)))
	return nil
}

// Close releases resources in reverse construction order. Safe on a
// partially built App.
func (a *App) Close() {
	if a.bus != nil {
		a.bus.Close()
	}
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	if a.Classifier != nil {
		a.Classifier.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.log.Warn("failed to close database", logger.Error(err))
		}
	}
	if a.Metrics != nil {
		errors.ClearErrorHooks()
	}
	if a.sentry {
		telemetry.Close()
		a.sentry = false
	}
}
