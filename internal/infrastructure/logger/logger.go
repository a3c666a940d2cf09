// Package logger builds the engine's root zerolog logger. Components derive
// their own sub-loggers from it with a "component" field.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/techmannih/helper-sub007/internal/config"
)

// New creates the root logger. Production emits JSON for log shipping;
// everything else gets the human-readable console writer.
func New(cfg *config.Config) zerolog.Logger {
	var output io.Writer = os.Stdout
	if cfg.Environment != "production" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return log.Output(output).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Logger().
		Level(parseLevel(cfg.LogLevel))
}

func parseLevel(raw string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
