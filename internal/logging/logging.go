// Package logging builds the process-wide structured logger that the
// cmd/pulsevmd subcommands write through. The internal/ packages do not
// log; Nop returns a silent logger for tests.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a logger writing JSON to stderr, or a human-readable console
// writer when pretty is true (local/dev runs).
func New(component string, pretty bool) zerolog.Logger {
	var w = os.Stderr
	logger := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	if pretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	return logger
}

// Nop returns a logger that discards everything, for unit tests.
func Nop() zerolog.Logger { return zerolog.Nop() }
