// Package api provides the HTTP server for trailcam. The JSON endpoints live
// in the v2 subpackage.
package api

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/trailcam-go/internal/api/middleware"
	"github.com/tphakala/trailcam-go/internal/conf"
)

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 2 * time.Minute
	DefaultWriteTimeout    = 3 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultBodyLimit       = "110M"

	// APIPrefix is the route prefix of the v2 API.
	APIPrefix = "/api/v2"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string
	Port string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BodyLimit string // echo syntax, e.g. "110M"
	Security  mw.SecurityConfig

	MetricsEnabled bool
	MetricsPath    string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            "8080",
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
		Security:        mw.DefaultSecurityConfig(),
		MetricsPath:     "/metrics",
	}
}

// ConfigFromSettings creates a Config from settings, keeping defaults for unset values.
func ConfigFromSettings(settings *conf.Settings) *Config {
	c := DefaultConfig()
	ws := settings.WebServer

	c.Host = ws.Host
	if ws.Port != "" {
		c.Port = ws.Port
	}
	if ws.ReadTimeout > 0 {
		c.ReadTimeout = ws.ReadTimeout
	}
	if ws.WriteTimeout > 0 {
		c.WriteTimeout = ws.WriteTimeout
	}
	if ws.ShutdownTimeout > 0 {
		c.ShutdownTimeout = ws.ShutdownTimeout
	}
	if ws.BodyLimit != "" {
		c.BodyLimit = ws.BodyLimit
	}
	if len(ws.CORSOrigins) > 0 {
		c.Security.AllowedOrigins = ws.CORSOrigins
	}
	c.Security.UploadRate = ws.UploadRateLimit
	if ws.UploadRateBurst > 0 {
		c.Security.UploadBurst = ws.UploadRateBurst
	}

	c.MetricsEnabled = settings.Metrics.Enabled
	if settings.Metrics.Path != "" {
		c.MetricsPath = settings.Metrics.Path
	}
	return c
}

// Address returns the listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	// BodyLimit panics on a malformed limit, so check it here
	if err := checkBodyLimit(c.BodyLimit); err != nil {
		return err
	}
	return nil
}

func checkBodyLimit(limit string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid body limit %q", limit)
		}
	}()
	middleware.BodyLimit(limit)
	return nil
}
