package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/collectline-payments/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, parseLevel(c.in), "level %q", c.in)
	}
}

func TestNewLogger(t *testing.T) {
	cases := []struct {
		name    string
		level   string
		enabled slog.Level
	}{
		{"DebugLevel", "debug", slog.LevelDebug},
		{"InfoLevel", "info", slog.LevelInfo},
		{"ErrorLevel", "error", slog.LevelError},
		{"UnknownFallsBackToInfo", "unknown", slog.LevelInfo},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := &config.Config{
				Application: config.ApplicationConfig{Name: "collectline"},
				Logging:     config.LoggingConfig{Level: c.level},
			}

			log := NewLogger(cfg)
			require.NotNil(t, log)
			assert.True(t, log.Enabled(context.Background(), c.enabled))

			if c.enabled == slog.LevelDebug {
				assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
			}
			if c.enabled == slog.LevelError {
				assert.False(t, log.Enabled(context.Background(), slog.LevelInfo))
			}
		})
	}
}
