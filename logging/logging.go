// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	slogmulti "github.com/samber/slog-multi"
)

type Options struct {
	// Level is one of debug, info, warn or error.
	Level string
	// File, when set, additionally receives JSON formatted records.
	File string
	// Output is the terminal writer, os.Stderr when nil.
	Output io.Writer
}

func ParseLevel(level string) clog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return clog.DebugLevel
	case "warn", "warning":
		return clog.WarnLevel
	case "error":
		return clog.ErrorLevel
	default:
		return clog.InfoLevel
	}
}

// Setup installs the default slog logger and returns a func that releases
// the log file, if any.
func Setup(opts Options) (func() error, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := ParseLevel(opts.Level)

	terminal := clog.NewWithOptions(out, clog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           level,
	})
	handlers := []slog.Handler{terminal}

	closeFn := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file := clog.NewWithOptions(f, clog.Options{
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339Nano,
			Level:           level,
			Formatter:       clog.JSONFormatter,
		})
		handlers = append(handlers, file)
		closeFn = f.Close
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(handlers...)))
	return closeFn, nil
}
