package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates a zerolog logger with the given level and output format.
// Unknown levels fall back to info.
func NewLogger(level string, format string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || logLevel == zerolog.NoLevel {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var logger zerolog.Logger

	if format == "console" || format == "pretty" {
		// Human-readable console output
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		// JSON output for production
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	return logger
}

// WithComponent returns a logger with a component field
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}
