// Package logging configures the process logger. Standard output is
// reserved for protocol traffic while serving, so every diagnostic goes
// to standard error (or a rotated file when configured).
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// envLogLevel is the preferred level variable; envLogLevelFallback keeps
// compatibility with clients configured for the original server.
const (
	envLogLevel         = "MEDULLA_LOG_LEVEL"
	envLogLevelFallback = "RUST_LOG"
	envLogFile          = "MEDULLA_LOG_FILE"
)

// New builds the process logger. The level comes from MEDULLA_LOG_LEVEL,
// falling back to RUST_LOG, defaulting to info; an unparseable value
// falls back to info rather than failing startup.
func New() zerolog.Logger {
	return NewWithOutput(output())
}

// NewWithOutput builds a logger at the environment-configured level over
// an explicit writer, for tests.
func NewWithOutput(w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(levelFromEnv()).With().Timestamp().Logger()
}

func output() io.Writer {
	if path := os.Getenv(envLogFile); path != "" {
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}
	}
	return os.Stderr
}

func levelFromEnv() zerolog.Level {
	raw := os.Getenv(envLogLevel)
	if raw == "" {
		raw = os.Getenv(envLogLevelFallback)
	}
	return parseLevel(raw)
}

// parseLevel accepts plain level names and RUST_LOG-style filters like
// "medulla=debug,info" by taking the first recognisable level token.
func parseLevel(raw string) zerolog.Level {
	for _, token := range strings.Split(raw, ",") {
		if i := strings.IndexByte(token, '='); i >= 0 {
			token = token[i+1:]
		}
		if level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(token))); err == nil && level != zerolog.NoLevel {
			return level
		}
	}
	return zerolog.InfoLevel
}
