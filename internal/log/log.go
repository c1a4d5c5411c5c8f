// Package log owns zerolog setup for the CLI: human-readable console output
// on a terminal, JSON lines otherwise.
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Setup builds the process logger. verbose lowers the level to debug.
func Setup(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
