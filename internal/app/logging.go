package app

import (
	"github.com/tphakala/trailcam-go/internal/conf"
	"github.com/tphakala/trailcam-go/internal/errors"
	"github.com/tphakala/trailcam-go/internal/logger"
)

// NewLogger builds the central logger from settings and installs it as the
// global instance. The caller closes it on exit.
func NewLogger(settings *conf.Settings) (*logger.CentralLogger, error) {
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return nil, errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_logger").
			Build()
	}
	logger.SetGlobal(central)
	return central, nil
}
