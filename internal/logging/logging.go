// Package logging configures the global zerolog logger from the environment.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup loads .env when present, then picks the output format from ENV and
// the level from LOGLEVEL.
func Setup() {
	err := godotenv.Load()

	production := os.Getenv("ENV") == "production"
	if production {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	levelStr := strings.ToLower(strings.TrimSpace(os.Getenv("LOGLEVEL")))
	level, known := ParseLevel(levelStr, production)
	zerolog.SetGlobalLevel(level)
	if !known {
		log.Warn().Msgf("Unknown LOGLEVEL '%s', defaulting to info.", levelStr)
	}

	// reported last so the message goes through the configured logger
	if err == nil {
		log.Debug().Msg("loaded environment from .env")
	}
}

// ParseLevel maps a LOGLEVEL value to a zerolog level. Empty picks warn in
// production and info elsewhere; known is false for unrecognized values.
func ParseLevel(s string, production bool) (level zerolog.Level, known bool) {
	switch s {
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "fatal":
		return zerolog.FatalLevel, true
	case "panic":
		return zerolog.PanicLevel, true
	case "disabled":
		return zerolog.Disabled, true
	case "":
		if production {
			return zerolog.WarnLevel, true
		}
		return zerolog.InfoLevel, true
	}
	return zerolog.InfoLevel, false
}
