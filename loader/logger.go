package loader

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with loader-specific helpers.
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

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithDataset tags every record with the dataset and task.
func (l *Logger) WithDataset(name, task string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", name, "task", task),
	}
}

// WithSet tags every record with the split name.
func (l *Logger) WithSet(set string) *Logger {
	return &Logger{
		Logger: l.Logger.With("set", set),
	}
}

// LogOpen logs the opening of a container.
func (l *Logger) LogOpen(ctx context.Context, path string, sets int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"path", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "container opened",
			"path", path,
			"sets", sets,
		)
	}
}

// LogRead logs a field read.
func (l *Logger) LogRead(ctx context.Context, field string, rows int, cached bool, err error) {
	if err != nil {
		l.DebugContext(ctx, "read failed",
			"field", field,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "read completed",
			"field", field,
			"rows", rows,
			"cached", cached,
		)
	}
}

// LogMaterialize logs the load of a field into memory.
func (l *Logger) LogMaterialize(ctx context.Context, field string, bytes int, err error) {
	if err != nil {
		l.WarnContext(ctx, "materialize failed",
			"field", field,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "field materialized",
			"field", field,
			"bytes", bytes,
		)
	}
}
