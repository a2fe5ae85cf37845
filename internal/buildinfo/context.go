// Package buildinfo carries build-time metadata injected through ldflags.
package buildinfo

import "runtime"

const unknown = "unknown"

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// GetVersion returns the version or "unknown".
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return unknown
	}
	return c.Version
}

// GetBuildDate returns the build date or "unknown".
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return unknown
	}
	return c.BuildDate
}

// Release is the Sentry release name, e.g. "trailcam@1.2.0".
func (c *Context) Release() string {
	return "trailcam@" + c.GetVersion()
}

// String renders a one-line version banner.
func (c *Context) String() string {
	return "trailcam " + c.GetVersion() + " (built " + c.GetBuildDate() + ", " + runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
