package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. LOG_FORMAT selects the handler:
// "json" for machine-readable output, anything else (the "pretty"
// default) for text. Production runs at info, everything else at debug.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true, Level: slog.LevelDebug}
	if cfg.IsProduction() {
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
