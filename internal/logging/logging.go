package logging

import (
	"log/slog"
	"os"
)

// Init installs the process-wide slog logger at the given level.
func Init(level string) {
	l := slog.LevelInfo

	switch level {
	case "dev", "development", "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error", "production", "prod":
		l = slog.LevelError
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: l,
		}),
	)
	slog.SetDefault(logger)
}
