// Package logging builds the process-wide structured logger.
// No business logic should depend on logging implementation details.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Severities beyond the four slog built-ins.
const (
	LevelVerbose = slog.LevelDebug - 4
	LevelFatal   = slog.LevelError + 4
)

// DefaultLevel applies when the configured severity is empty.
const DefaultLevel = slog.LevelInfo

// ParseLevel maps a configured minimum severity onto a slog level.
// Recognized: fatal, error, warn, info, debug, verbose. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultLevel, nil
	case "fatal":
		return LevelFatal, nil
	case "error":
		return slog.LevelError, nil
	case "warn":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "verbose":
		return LevelVerbose, nil
	default:
		return DefaultLevel, fmt.Errorf("unrecognized log level %q", s)
	}
}

// New returns a JSON logger writing to w at the given minimum level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameCustomLevels,
	})
	return slog.New(h)
}

// renameCustomLevels renders the two non-standard levels with their own
// names instead of slog's "DEBUG-4" / "ERROR+4".
func renameCustomLevels(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch level {
	case LevelVerbose:
		a.Value = slog.StringValue("VERBOSE")
	case LevelFatal:
		a.Value = slog.StringValue("FATAL")
	}
	return a
}
