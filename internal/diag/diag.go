// Package diag builds the leveled loggers used across the bridge. Nothing in
// the lifecycle or transcription paths depends on what a logger does with a
// record; handlers here only format and forward.
package diag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// NewLogger returns a text logger writing to w at the given level. A nil
// writer defaults to stdout.
func NewLogger(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler)
}

// ParseLevel maps a configuration string onto a slog level. Unknown values
// fall back to info.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LineFunc receives one formatted diagnostic line.
type LineFunc func(level slog.Level, line string)

// FuncHandler is a slog.Handler that renders each record as a single
// "msg key=value ..." line and hands it to a host supplied callback.
// Records are delivered one at a time, so the callback need not be
// reentrant.
type FuncHandler struct {
	mu    *sync.Mutex
	fn    LineFunc
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewFuncHandler returns a handler forwarding records at or above level to fn.
func NewFuncHandler(fn LineFunc, level slog.Leveler) *FuncHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &FuncHandler{mu: &sync.Mutex{}, fn: fn, level: level}
}

// Enabled implements slog.Handler.
func (h *FuncHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.fn != nil && level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *FuncHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	h.fn(r.Level, b.String())
	return nil
}

// WithAttrs implements slog.Handler.
func (h *FuncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

// WithGroup implements slog.Handler.
func (h *FuncHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.group != "" {
		clone.group = h.group + "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	fmt.Fprintf(b, " %s=%v", key, a.Value.Any())
}
