// Package log configures the process-wide slog logger.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default text logger at the given level. Unknown
// level names fall back to info, so a typo in LOG_LEVEL never silences
// a binary.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(logLevel))); err != nil {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns the default logger tagged with the component name.
// Every long-lived component logs under exactly one module.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
