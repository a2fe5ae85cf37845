package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// NewSlogLogger returns a Logger writing JSON records to w at the given level.
// A nil writer means stdout and a nil timezone means time.Local.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if w == nil {
		w = os.Stdout
	}
	if tz == nil {
		tz = time.Local
	}
	slogLevel := parseSlogLevel(level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel})
	return &moduleLogger{
		logger:   slog.New(handler),
		level:    slogLevel,
		timezone: tz,
	}
}
