// Package logger builds the zerolog loggers used across splitledger.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New creates a console logger on stderr. Debug lowers the level from info
// to debug.
func New(debug bool) zerolog.Logger {
	return console(os.Stderr, debug, false)
}

// NewConsole creates an uncolored human-readable logger writing to w.
func NewConsole(w io.Writer, debug bool) zerolog.Logger {
	return console(w, debug, true)
}

func console(w io.Writer, debug, noColor bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(level(debug)).With().Timestamp().Logger()
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(w io.Writer, debug bool) zerolog.Logger {
	return zerolog.New(w).Level(level(debug)).With().Timestamp().Logger()
}

func level(debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// WithContext adds the logger to the context.
func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext retrieves the logger from the context, or a disabled logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return log
	}
	return zerolog.Nop()
}
