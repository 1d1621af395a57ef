package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the process logger. main replaces it via Init; until then it discards.
var Log = zerolog.Nop()

// New builds a logger for env: console output in development, JSON otherwise.
func New(env string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339

	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}).
			With().
			Timestamp().
			Caller().
			Logger()
	}
	return zerolog.New(out).
		With().
		Timestamp().
		Logger()
}

// Init sets Log, and zerolog's package logger, for the given environment.
func Init(env string) zerolog.Logger {
	Log = New(env, os.Stdout)
	log.Logger = Log
	if env == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return Log
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
