// Package obslog configures structured logging for hosts embedding the
// engine. It is never imported by the pure accounting packages (C1–C10):
// those return errors for the caller to log, they never log themselves.
package obslog

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup. File is optional; an empty path logs to
// stdout only.
type Options struct {
	Service    string
	Env        string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Setup builds a JSON slog.Logger with service/env attributes attached to
// every record, optionally rotating to File via lumberjack.
func Setup(opts Options) *slog.Logger {
	var writer io.Writer = os.Stdout

	if opts.File != "" {
		writer = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxOr(opts.MaxSizeMB, 100),
			MaxBackups: maxOr(opts.MaxBackups, 3),
			Compress:   true,
		}
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		AddSource: false,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []any{slog.String("service", strings.TrimSpace(opts.Service))}
	if env := strings.TrimSpace(opts.Env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	return slog.New(handler).With(attrs...)
}

func maxOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
