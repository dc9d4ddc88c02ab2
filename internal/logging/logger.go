// Package logging implements C13: a dual-destination logger that mirrors
// every call to stdout (via zerolog) and to a buffered, batched system_logs
// sink, generalized from this module's ancestor's pkg/utils/logger.go.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level mirrors spec.md's log entry schema: debug, info, warning, error,
// critical.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// Init configures the process-wide zerolog logger: pretty console output in
// development, structured JSON in production. Called once at startup.
func Init(environment, levelOverride string) {
	level := strings.ToLower(levelOverride)
	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		if environment == "development" {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	}

	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "harvester").Logger()
	}

	log.Info().
		Str("level", zerolog.GlobalLevel().String()).
		Str("environment", environment).
		Msg("logger initialized")
}
