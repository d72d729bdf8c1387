// Package logging builds the process-wide structured logger from config.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/runnerr0/sitetime/internal/config"
)

// Options selects where and how log records are written.
type Options struct {
	Level  string
	Format string
	// File is the log path; empty writes to Fallback.
	File       string
	MaxSizeB   int
	MaxBackups int
	// Fallback is used when File is empty. Nil means os.Stderr.
	Fallback io.Writer
}

// FromConfig derives Options from the logging section. verbose forces
// debug level.
func FromConfig(cfg *config.Config, verbose bool) (Options, error) {
	file, err := cfg.LogPath()
	if err != nil {
		return Options{}, err
	}
	opts := Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       file,
		MaxSizeB:   cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
	}
	if verbose {
		opts.Level = "debug"
	}
	return opts, nil
}

// New returns a logger and a closer for its output. Files are rotated by
// size through lumberjack.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var w io.Writer
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    megabytes(opts.MaxSizeB),
			MaxBackups: opts.MaxBackups,
		}
		w, closer = lj, lj
	} else if opts.Fallback != nil {
		w = opts.Fallback
	} else {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(h), closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// megabytes converts a byte budget to lumberjack's whole-megabyte unit,
// rounding up. Zero lets lumberjack use its default.
func megabytes(b int) int {
	if b <= 0 {
		return 0
	}
	const mb = 1 << 20
	return (b + mb - 1) / mb
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
