package logger

import (
	"fmt"
	"io"

	echolog "github.com/labstack/gommon/log"
)

// EchoAdapter routes echo's own logging (startup notices, recovered panics)
// through a module Logger. Output, prefix and level are owned by the central
// logger configuration, so the setters are no-ops.
type EchoAdapter struct {
	log Logger
}

// NewEchoAdapter wraps log for use as echo.Echo.Logger.
func NewEchoAdapter(log Logger) *EchoAdapter {
	if log == nil {
		log = NewSlogLogger(nil, LogLevelInfo, nil)
	}
	return &EchoAdapter{log: log}
}

func (a *EchoAdapter) Output() io.Writer         { return io.Discard }
func (a *EchoAdapter) SetOutput(io.Writer)       {}
func (a *EchoAdapter) Prefix() string            { return "" }
func (a *EchoAdapter) SetPrefix(string)          {}
func (a *EchoAdapter) Level() echolog.Lvl        { return echolog.INFO }
func (a *EchoAdapter) SetLevel(echolog.Lvl)      {}
func (a *EchoAdapter) SetHeader(string)          {}
func (a *EchoAdapter) Print(i ...any)            { a.log.Info(fmt.Sprint(i...)) }
func (a *EchoAdapter) Printf(f string, v ...any) { a.log.Info(fmt.Sprintf(f, v...)) }
func (a *EchoAdapter) Printj(j echolog.JSON)     { a.log.Info("echo", Any("data", j)) }
func (a *EchoAdapter) Debug(i ...any)            { a.log.Debug(fmt.Sprint(i...)) }
func (a *EchoAdapter) Debugf(f string, v ...any) { a.log.Debug(fmt.Sprintf(f, v...)) }
func (a *EchoAdapter) Debugj(j echolog.JSON)     { a.log.Debug("echo", Any("data", j)) }
func (a *EchoAdapter) Info(i ...any)             { a.log.Info(fmt.Sprint(i...)) }
func (a *EchoAdapter) Infof(f string, v ...any)  { a.log.Info(fmt.Sprintf(f, v...)) }
func (a *EchoAdapter) Infoj(j echolog.JSON)      { a.log.Info("echo", Any("data", j)) }
func (a *EchoAdapter) Warn(i ...any)             { a.log.Warn(fmt.Sprint(i...)) }
func (a *EchoAdapter) Warnf(f string, v ...any)  { a.log.Warn(fmt.Sprintf(f, v...)) }
func (a *EchoAdapter) Warnj(j echolog.JSON)      { a.log.Warn("echo", Any("data", j)) }
func (a *EchoAdapter) Error(i ...any)            { a.log.Error(fmt.Sprint(i...)) }
func (a *EchoAdapter) Errorf(f string, v ...any) { a.log.Error(fmt.Sprintf(f, v...)) }
func (a *EchoAdapter) Errorj(j echolog.JSON)     { a.log.Error("echo", Any("data", j)) }

// Fatal and Panic log at ERROR and panic; echo never calls them on the
// request path, and exiting would skip graceful shutdown.
func (a *EchoAdapter) Fatal(i ...any)            { a.fail(fmt.Sprint(i...)) }
func (a *EchoAdapter) Fatalf(f string, v ...any) { a.fail(fmt.Sprintf(f, v...)) }
func (a *EchoAdapter) Fatalj(j echolog.JSON)     { a.fail(fmt.Sprint(j)) }
func (a *EchoAdapter) Panic(i ...any)            { a.fail(fmt.Sprint(i...)) }
func (a *EchoAdapter) Panicf(f string, v ...any) { a.fail(fmt.Sprintf(f, v...)) }
func (a *EchoAdapter) Panicj(j echolog.JSON)     { a.fail(fmt.Sprint(j)) }

func (a *EchoAdapter) fail(msg string) {
	a.log.Error(msg)
	panic(msg)
}
