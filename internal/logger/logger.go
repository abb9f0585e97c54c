// Package logger builds the process-wide structured logger. Everything
// logs JSON to stdout so the collector can parse it.
package logger

import (
	"log/slog"
	"os"

	"github.com/collectline-payments/internal/config"
)

// NewLogger builds a JSON logger at the configured level, tagged with the
// application name. Unknown level strings fall back to info.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
		// Source locations are only worth the noise when debugging
		AddSource: level == slog.LevelDebug,
	})

	log := slog.New(handler).With("app", cfg.Application.Name)
	log.Info("Logger initialized", "level", level.String())
	return log
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
