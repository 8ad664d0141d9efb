package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where log output goes.
type Options struct {
	// File is the rotated log file. Empty keeps output on stderr only.
	File  string
	Level slog.Level
}

// Setup builds the app logger, installs it as the slog default and returns a
// closer for the rotated file.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, err
		}
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, rotated)
		closer = rotated
	}

	logger := New(w, opts.Level)
	slog.SetDefault(logger)
	return logger, closer, nil
}

// New returns a text logger on w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger { return New(io.Discard, slog.LevelError) }

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
