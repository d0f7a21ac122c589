// Package logging configures the process logger.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New returns a logger writing to out, human-readable for "console" and
// JSON lines otherwise. debug lowers the level to debug. The global
// zerolog logger is set as well.
func New(out io.Writer, format string, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var w io.Writer = out
	if format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.TimeOnly,
		}
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// Access returns the logger used for per-request access lines. Access lines
// are always JSON so they can be filtered and parsed.
func Access(out io.Writer) zerolog.Logger {
	return zerolog.New(out).With().Timestamp().Str("log", "access").Logger()
}
