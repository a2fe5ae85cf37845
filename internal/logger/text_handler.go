package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// textHandler renders "LEVEL [module] message key=value ..." lines for consoles.
// Timestamps are left to the process supervisor.
type textHandler struct {
	mu       *sync.Mutex
	w        io.Writer
	level    slog.Leveler
	timezone *time.Location
	attrs    []slog.Attr
	group    string
}

func newTextHandler(w io.Writer, level slog.Leveler, tz *time.Location) slog.Handler {
	if tz == nil {
		tz = time.Local
	}
	return &textHandler{mu: &sync.Mutex{}, w: w, level: level, timezone: tz}
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

//nolint:gocritic // slog.Handler requires the record by value
func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	buf.WriteString(levelName(r.Level))
	buf.WriteByte(' ')

	var module string
	var rest []slog.Attr
	collect := func(a slog.Attr) bool {
		if a.Key == moduleKey && module == "" {
			module = a.Value.String()
			return true
		}
		rest = append(rest, a)
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	if module != "" {
		fmt.Fprintf(&buf, "[%s] ", module)
	}
	buf.WriteString(r.Message)

	for _, a := range rest {
		h.appendAttr(&buf, h.group, a)
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *textHandler) appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.appendAttr(buf, key, ga)
		}
		return
	}

	var value string
	switch a.Value.Kind() {
	case slog.KindTime:
		value = a.Value.Time().In(h.timezone).Format(time.RFC3339)
	default:
		value = a.Value.String()
	}
	if strings.ContainsAny(value, " \t\"=") {
		value = fmt.Sprintf("%q", value)
	}
	fmt.Fprintf(buf, " %s=%s", key, value)
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func levelName(level slog.Level) string {
	switch {
	case level <= traceLevelValue:
		return "TRACE"
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO "
	case level < slog.LevelError:
		return "WARN "
	default:
		return "ERROR"
	}
}
