// Package memfslog wires log/slog to an optional rotating file sink.
// Filesystem instances default to a discarding logger — quiet unless a
// caller asks for one — matching the teacher's own debug-logger default
// of writing nowhere until a caller opts in.
package memfslog

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how log output is rotated. A zero Config
// produces a discarding logger.
type Config struct {
	// Filename, if non-empty, routes output through a lumberjack rotating
	// writer at this path instead of discarding it.
	Filename string

	// MaxSizeMB is the size in megabytes at which a log file is rotated.
	// Defaults to 100 if zero and Filename is set.
	MaxSizeMB int

	// MaxBackups is the number of rotated files to retain. 0 retains all.
	MaxBackups int

	// Level sets the minimum level that will be logged. Defaults to Info.
	Level slog.Level
}

// New returns a logger per cfg. With a zero Config, the returned logger
// discards everything, so instrumented code can log unconditionally
// without callers paying for it.
func New(cfg Config) *slog.Logger {
	if cfg.Filename == "" {
		return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: cfg.Level}))
	}

	maxSize := cfg.MaxSizeMB
	if maxSize == 0 {
		maxSize = 100
	}
	writer := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
	}
	return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: cfg.Level}))
}

// Noop returns a logger that discards all output, the default a
// filesystem instance is constructed with when no Config is supplied.
func Noop() *slog.Logger {
	return New(Config{})
}

