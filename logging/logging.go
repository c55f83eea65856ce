// Package logging provides the structured logger shared by every component
// of the orchestration engine. It wraps log/slog with a colorized text
// handler for terminal output and a plain JSON handler otherwise.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// ParseLevel converts a string log level to slog.Level.
// Valid levels: debug, info, warn, error. Unknown values default to info.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, nil
	}
}

func getLevelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

// coloredTextHandler formats records as "LEVEL message key=value ..." with
// ANSI coloring by level, used when output is an interactive terminal.
type coloredTextHandler struct {
	writer io.Writer
	attrs  []slog.Attr
	level  slog.Leveler
}

func (h *coloredTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *coloredTextHandler) Handle(_ context.Context, record slog.Record) error {
	var buf strings.Builder
	buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	buf.WriteString(getLevelColor(record.Level))
	buf.WriteString(strings.ToUpper(record.Level.String()))
	buf.WriteString("\033[0m ")
	buf.WriteString(record.Message)
	for _, a := range h.attrs {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
	}
	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
	buf.WriteString("\n")
	_, err := io.WriteString(h.writer, buf.String())
	return err
}

func (h *coloredTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &coloredTextHandler{writer: h.writer, attrs: merged, level: h.level}
}

func (h *coloredTextHandler) WithGroup(_ string) slog.Handler {
	return h
}

// New builds a logger writing to output at the given level. Terminal output
// gets colorized text; anything else (files, pipes) gets structured JSON so
// logs stay machine-parseable when redirected.
func New(level slog.Level, output *os.File) *slog.Logger {
	var handler slog.Handler
	if f, ok := any(output).(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		handler = &coloredTextHandler{writer: output, level: level}
	} else {
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

// Component returns a child logger tagged with the owning component and
// operation, matching the {Component, Operation} shape used by Error.
func Component(base *slog.Logger, component, operation string) *slog.Logger {
	return base.With("component", component, "operation", operation)
}
