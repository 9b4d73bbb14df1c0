package logger

import (
	"io"
	"os"

	"scorepad/internal/config"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// New logs to stderr so command output on stdout stays clean, at the level
// resolved by config.Load (environment or .env).
func New(cfg *config.Config) zerolog.Logger {
	return SetLevel(os.Stderr, parseLevel(cfg.LogLevel))
}

// Bootstrap is the logger used while the configuration itself is loading.
// Only the process environment is visible at that point.
func Bootstrap() zerolog.Logger {
	return SetLevel(os.Stderr, parseLevel(os.Getenv("LOG_LEVEL")))
}

func parseLevel(raw string) zerolog.Level {
	level, err := zerolog.ParseLevel(raw)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func SetLevel(w io.Writer, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Logger()

	logger = logger.Level(level)

	return logger
}

var Module = fx.Provide(New)
