// Package log configures the process-wide structured logger.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a text handler on stderr at the given level. Unknown level
// names fall back to info.
func Setup(logLevel string) {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.ToUpper(logLevel)))
	if err != nil {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns a child of the default logger tagged with the module
// that owns it.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
