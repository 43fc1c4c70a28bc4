// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects the level and destination of log output.
type Options struct {
	Level string
	// File receives JSON lines when Console is false.
	File string
	// Console writes human-readable output to Stderr instead of File.
	Console bool
	// Stderr overrides os.Stderr for console output.
	Stderr io.Writer
}

// Setup installs the global logger and returns a function that releases the
// log file, if one was opened.
//
// The interactive UI owns the terminal, so it logs to a file; servers log to
// stderr.
func Setup(opts Options) (func() error, error) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", opts.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if opts.Console || opts.File == "" {
		out := opts.Stderr
		if out == nil {
			out = os.Stderr
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}).
			With().Timestamp().Logger()
		return func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return f.Close, nil
}
