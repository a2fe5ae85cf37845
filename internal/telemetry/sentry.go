// Package telemetry wires opt-in Sentry error reporting into the errors package.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
	"github.com/tphakala/trailcam-go/internal/privacy"
)

// FlushTimeout bounds how long Close waits for queued events.
const FlushTimeout = 2 * time.Second

// Option adjusts the Sentry client options before Init.
type Option func(*sentry.ClientOptions)

// WithTransport replaces the HTTP transport, used by tests.
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) { o.Transport = t }
}

// InitSentry initializes the Sentry SDK and installs the errors reporter.
// It returns false without error when reporting is disabled.
func InitSentry(settings *conf.Settings, release string, log logger.Logger, opts ...Option) (bool, error) {
	if !settings.Sentry.Enabled {
		log.Debug("sentry error reporting is disabled")
		return false, nil
	}
	if settings.Sentry.DSN == "" {
		return false, errors.Newf("sentry enabled without a DSN").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	environment := settings.Sentry.Environment
	if environment == "" {
		environment = "production"
	}
	sampleRate := settings.Sentry.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}

	options := sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       sampleRate,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       settings.Main.Name,
		Release:          release,
		BeforeSend:       applyPrivacyFilters,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		return false, fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	log.Info("sentry error reporting enabled",
		logger.String("environment", environment),
		logger.String("release", release))
	return true, nil
}

// Close detaches the reporter and flushes queued events.
func Close() {
	errors.SetTelemetryReporter(nil)
	sentry.Flush(FlushTimeout)
}

// applyPrivacyFilters drops user and host identifying data and scrubs
// endpoint URLs and credentials from messages before an event leaves.
func applyPrivacyFilters(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}
	for _, b := range event.Breadcrumbs {
		b.Message = privacy.ScrubMessage(b.Message)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}
	if event.Tags != nil {
		delete(event.Tags, "hostname")
	}
	if event.Request != nil {
		event.Request.Cookies = ""
		event.Request.Headers = nil
		event.Request.Env = nil
	}
	return event
}
