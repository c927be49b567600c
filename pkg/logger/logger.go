// Package logger wraps log/slog construction for the transcription tools.
// Output goes to stderr by default; when a file is configured the logger
// writes there through lumberjack rotation instead, so batch workers can
// log freely without disturbing the terminal progress table.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config defines logger construction options.
// Level accepts debug/info/warn/error. Format accepts text/json.
// When File is non-empty all output is appended to that rotating file.
type Config struct {
	Level      string
	Format     string
	File       string
	WithSource bool
}

var (
	global *slog.Logger
	once   sync.Once
)

func levelFromString(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("invalid log level: " + level)
	}
}

// New builds a slog.Logger from cfg without touching the global instance.
func New(cfg Config) (*slog.Logger, error) {
	lvl, err := levelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: lvl, AddSource: cfg.WithSource}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(handler), nil
}

// Init initializes the global logger. Repeated calls return the logger
// created by the first call.
func Init(cfg Config) (*slog.Logger, error) {
	var initErr error
	once.Do(func() {
		global, initErr = New(cfg)
	})
	return global, initErr
}

// L returns the global logger, falling back to slog.Default when Init
// was never called (tests and small code paths).
func L() *slog.Logger {
	if global == nil {
		return slog.Default()
	}
	return global
}

// LogStage records a structured pipeline stage event for one audio track.
// stage: convert/split/transcribe/combine. action: start/success/error/skip.
func LogStage(logger *slog.Logger, stage, action, track string, durationMs int64, errMsg string) {
	attrs := []slog.Attr{
		slog.String("stage", stage),
		slog.String("action", action),
		slog.String("track", track),
		slog.Int64("duration_ms", durationMs),
	}

	if errMsg != "" {
		attrs = append(attrs, slog.String("error", errMsg))
		logger.LogAttrs(context.Background(), slog.LevelError, "pipeline stage failed", attrs...)
	} else {
		logger.LogAttrs(context.Background(), slog.LevelInfo, "pipeline stage", attrs...)
	}
}
