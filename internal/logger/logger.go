package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Logging levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Environments: text logs for development, json for production
const (
	EnvDevelopment = "dev"
	EnvProduction  = "prod"
)

// Logger interface defines the logging contract
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	With(args ...any) Logger
	WithGroup(name string) Logger
}

// New creates logger suitable for the environment
func New(environment string, level string) (Logger, error) {
	switch environment {
	case EnvDevelopment:
		return NewTextLogger(level)
	case EnvProduction:
		return NewJSONLogger(level)
	default:
		return nil, fmt.Errorf("unknown environment %q, use %q or %q", environment, EnvDevelopment, EnvProduction)
	}
}

// NewTextLogger creates a text logger writing to stderr
func NewTextLogger(level string) (Logger, error) {
	return newLogger(level, func(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
		return slog.NewTextHandler(w, opts)
	})
}

// NewJSONLogger creates a JSON logger writing to stderr
func NewJSONLogger(level string) (Logger, error) {
	return newLogger(level, func(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
		return slog.NewJSONHandler(w, opts)
	})
}

// NewNoOpLogger creates a logger that discards all log messages
func NewNoOpLogger() Logger {
	return &handlerLogger{handler: slog.DiscardHandler}
}

func newLogger(level string, newHandler func(io.Writer, *slog.HandlerOptions) slog.Handler) (Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   true,
		ReplaceAttr: baseSourceFile,
	}

	return &handlerLogger{handler: newHandler(os.Stderr, opts)}, nil
}

// parseLevel converts string level to slog.Level
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelInfo:
		return slog.LevelInfo, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// handlerLogger writes records straight to slog.Handler,
// so the source points to the caller of Debug/Info/Warn/Error
type handlerLogger struct {
	handler slog.Handler
}

// Frames to skip: runtime.Callers, log and the level method
const callerSkip = 3

func (l *handlerLogger) log(level slog.Level, msg string, args []any) {
	ctx := context.Background()
	if !l.handler.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(callerSkip, pcs[:])

	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(args...)
	_ = l.handler.Handle(ctx, record)
}

func (l *handlerLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *handlerLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *handlerLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *handlerLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

func (l *handlerLogger) With(args ...any) Logger {
	if len(args) == 0 {
		return l
	}
	record := slog.NewRecord(time.Time{}, 0, "", 0)
	record.Add(args...)

	attrs := make([]slog.Attr, 0, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return &handlerLogger{handler: l.handler.WithAttrs(attrs)}
}

func (l *handlerLogger) WithGroup(name string) Logger {
	if name == "" {
		return l
	}
	return &handlerLogger{handler: l.handler.WithGroup(name)}
}

// Keep only file name of the source
func baseSourceFile(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	if source, ok := a.Value.Any().(*slog.Source); ok {
		source.File = filepath.Base(source.File)
	}
	return a
}
