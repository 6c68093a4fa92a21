package app

import (
	"fmt"
	"io"
	"log/slog"
)

// logLevels is the closed set of accepted -log-level values.
var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// validateLogConfig rejects level/format values outside the accepted sets.
// NewConfig runs it, so newLogger never sees anything else from the CLI.
func validateLogConfig(levelStr, formatStr string) error {
	if _, ok := logLevels[levelStr]; !ok {
		return fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", levelStr)
	}
	if formatStr != "text" && formatStr != "json" {
		return fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", formatStr)
	}
	return nil
}

// newLogger creates the logger for one App instance. It never touches the
// global logger, so embedded App instances stay isolated. Unvalidated input
// (tests constructing a Config by hand) falls back to info-level text.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	level, ok := logLevels[levelStr]
	if !ok {
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler

	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}

	return slog.New(handler)
}
