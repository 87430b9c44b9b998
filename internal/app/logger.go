package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production runs JSON with
// source locations for log aggregation; development stays on the
// text handler at debug level.
func NewLogger(cfg *Config) *slog.Logger {
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
