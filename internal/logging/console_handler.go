package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiCyan   = "\x1b[36m"
)

// consoleHandler renders records as single human-readable lines:
//
//	15:04:05 INFO  consumer  message received  queue=jellyfin:item_added
//
// The component attribute is promoted into the header; remaining
// attributes trail as key=value pairs.
type consoleHandler struct {
	mu     sync.Mutex
	writer io.Writer
	level  *slog.LevelVar
	color  bool
	attrs  []slog.Attr
	group  string
}

func newConsoleHandler(writer io.Writer, level *slog.LevelVar, color bool) slog.Handler {
	return &consoleHandler{writer: writer, level: level, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var component string
	var pairs []slog.Attr
	collect := func(attr slog.Attr) {
		if attr.Key == FieldComponent && component == "" {
			component = attr.Value.String()
			return
		}
		pairs = append(pairs, attr)
	}
	for _, attr := range h.attrs {
		collect(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		collect(attr)
		return true
	})

	var buf bytes.Buffer
	buf.Grow(128 + len(pairs)*24)

	fmt.Fprintf(&buf, "%s%s%s ", h.paint(ansiDim), timestamp.Format("15:04:05"), h.paint(ansiReset))
	fmt.Fprintf(&buf, "%s%-5s%s ", h.paint(levelColor(record.Level)), record.Level.String(), h.paint(ansiReset))
	if component != "" {
		fmt.Fprintf(&buf, "%s%-12s%s ", h.paint(ansiCyan), component, h.paint(ansiReset))
	}
	buf.WriteString(record.Message)
	for _, attr := range pairs {
		key := attr.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fmt.Fprintf(&buf, "  %s%s=%s%s", h.paint(ansiDim), key, attr.Value.String(), h.paint(ansiReset))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return clone
}

func (h *consoleHandler) clone() *consoleHandler {
	return &consoleHandler{
		writer: h.writer,
		level:  h.level,
		color:  h.color,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		group:  h.group,
	}
}

func (h *consoleHandler) paint(code string) string {
	if !h.color {
		return ""
	}
	return code
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	default:
		return ansiBlue
	}
}
