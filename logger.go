package voxcache

import (
	"log/slog"
	"os"

	"github.com/hupe1980/voxcache/volume"
)

// Logger wraps slog.Logger with voxcache-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithRenderer adds a renderer field to the logger.
func (l *Logger) WithRenderer(id volume.RendererID) *Logger {
	return &Logger{
		Logger: l.Logger.With("renderer", id.String()),
	}
}

// WithDataset adds a dataset path field to the logger.
func (l *Logger) WithDataset(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", path),
	}
}

// WithBrick adds brick key fields to the logger.
func (l *Logger) WithBrick(key volume.BrickKey) *Logger {
	return &Logger{
		Logger: l.Logger.With("lod", key.LOD, "index", key.Index),
	}
}

// LogDatasetLoad logs a dataset load operation.
func (l *Logger) LogDatasetLoad(path string, err error) {
	if err != nil {
		l.Error("dataset load failed",
			"path", path,
			"error", err,
		)
	} else {
		l.Info("dataset loaded",
			"path", path,
		)
	}
}

// LogBrickRequest logs a brick request and how it was served.
func (l *Logger) LogBrickRequest(key volume.BrickKey, outcome string, err error) {
	if err != nil {
		l.Error("brick request failed",
			"lod", key.LOD,
			"index", key.Index,
			"error", err,
		)
	} else {
		l.Debug("brick request served",
			"lod", key.LOD,
			"index", key.Index,
			"outcome", outcome,
		)
	}
}
