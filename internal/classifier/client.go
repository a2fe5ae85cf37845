// Package classifier calls the SpeciesNet HTTP wrapper and maps its response
// into a Result.
//
// Each Classify call makes exactly one request; there are no retries.
// Failures are matched with errors.Is against ErrUnavailable, ErrFailure and
// ErrNoDetection.
package classifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/httpclient"
	"github.com/tphakala/trailcam-go/internal/logger"
	"github.com/tphakala/trailcam-go/internal/privacy"
)

// Sentinel errors for classification outcomes.
var (
	// ErrUnavailable means the classifier could not be reached or did not answer in time.
	ErrUnavailable = errors.NewStd("classifier unavailable")

	// ErrFailure means the classifier answered with an error or an unusable body.
	ErrFailure = errors.NewStd("classifier failure")

	// ErrNoDetection means the classifier answered but reported no prediction.
	ErrNoDetection = errors.NewStd("classifier reported no detection")
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 4 << 20

// Outcome labels reported to an Observer.
const (
	OutcomeSuccess     = "success"
	OutcomeNoDetection = "no_detection"
	OutcomeUnavailable = "unavailable"
	OutcomeFailure     = "failure"
)

// Observer receives per-call outcomes, typically for metrics.
type Observer interface {
	ObserveClassification(outcome string, duration time.Duration)
}

// Client is the SpeciesNet classifier client. Safe for concurrent use.
type Client struct {
	http       *httpclient.Client
	predictURL string
	healthURL  string
	fileField  string
	timeout    time.Duration
	log        logger.Logger
	observer   Observer
}

// Option configures a Client.
type Option func(*Client)

// WithObserver reports call outcomes to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithHTTPClient replaces the outbound HTTP client.
func WithHTTPClient(h *httpclient.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Client from classifier settings.
func New(settings *conf.ClassifierSettings, log logger.Logger, opts ...Option) *Client {
	base := strings.TrimRight(settings.URL, "/")
	healthPath := settings.HealthPath
	if healthPath == "" {
		healthPath = "/health"
	}

	c := &Client{
		predictURL: base + settings.Path,
		healthURL:  base + healthPath,
		fileField:  settings.FileField,
		timeout:    settings.Timeout,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = httpclient.New(&httpclient.Config{
			DefaultTimeout: settings.Timeout,
			UserAgent:      settings.UserAgent,
		})
	}
	c.http.SetAfterResponseHook(c.logExchange)

	return c
}

// Classify sends the image once and returns the mapped Result. An empty
// contentType is sent as application/octet-stream.
func (c *Client) Classify(ctx context.Context, data []byte, filename, contentType string) (*Result, error) {
	start := time.Now()
	res, err := c.classify(ctx, data, filename, contentType)

	if c.observer != nil {
		c.observer.ObserveClassification(outcomeOf(err), time.Since(start))
	}
	if err != nil {
		c.log.Warn("classification failed",
			logger.String("file", filename),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		return nil, err
	}

	c.log.Info("image classified",
		logger.String("file", filename),
		logger.String("label", res.Label()),
		logger.Float64("score", res.Score),
		logger.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (c *Client) classify(ctx context.Context, data []byte, filename, contentType string) (*Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if filename == "" {
		filename = "upload"
	}

	resp, err := c.http.PostMultipart(ctx, c.predictURL, httpclient.FilePart{
		FieldName:   c.fileField,
		FileName:    filename,
		ContentType: contentType,
		Data:        data,
	}, nil)
	if err != nil {
		return nil, c.unavailable(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, c.unavailable(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(
			fmt.Errorf("%w: status %d: %s", ErrFailure, resp.StatusCode, snippet(body)),
			c.predictURL, resp.StatusCode)
	}

	res, err := parseResponse(body)
	if errors.Is(err, ErrNoDetection) {
		return nil, err
	}
	if err != nil {
		return nil, responseError(err, c.predictURL, resp.StatusCode)
	}
	return res, nil
}

// unavailable wraps a transport error, separating timeouts from cancellations.
// The endpoint is scrubbed from the message since it reaches API clients.
func (c *Client) unavailable(ctx context.Context, err error) error {
	category := errors.CategoryNetwork
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		category = errors.CategoryTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		category = errors.CategoryCancellation
	}
	return errors.New(fmt.Errorf("%w: %w", ErrUnavailable, privacy.WrapError(err))).
		Component("classifier").
		Category(category).
		NetworkContext(c.predictURL, c.timeout).
		Build()
}

// Health checks that the classifier answers its health endpoint with 2xx.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.Get(ctx, c.healthURL)
	if err != nil {
		return c.unavailable(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(fmt.Errorf("%w: health status %d", ErrUnavailable, resp.StatusCode),
			c.healthURL, resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}

func (c *Client) logExchange(req *http.Request, resp *http.Response, err error) {
	if err != nil {
		c.log.Debug("classifier request error",
			logger.String("method", req.Method),
			logger.String("url", req.URL.String()),
			logger.Error(err))
		return
	}
	c.log.Debug("classifier response",
		logger.String("method", req.Method),
		logger.String("url", req.URL.String()),
		logger.Int("status", resp.StatusCode))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrNoDetection):
		return OutcomeNoDetection
	case errors.Is(err, ErrUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeFailure
	}
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
