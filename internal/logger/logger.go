package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	loggerKey   contextKey = "logger"
	runIDKey    contextKey = "run_id"
	manifestKey contextKey = "manifest"
)

var defaultLogger *slog.Logger

func Init(level string) {
	InitWriter(level, os.Stdout)
}

// InitWriter is Init with logs sent to w. One-shot commands log to stderr so
// stdout carries only their results.
func InitWriter(level string, w io.Writer) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	handler := slog.NewJSONHandler(w, opts)
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func Default() *slog.Logger {
	if defaultLogger == nil {
		Init("info")
	}
	return defaultLogger
}

func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return Default()
}

func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithRunID tags every log line of one manifest run.
func WithRunID(ctx context.Context, runID string) context.Context {
	l := FromContext(ctx).With("run_id", runID)
	ctx = context.WithValue(ctx, runIDKey, runID)
	return WithLogger(ctx, l)
}

func WithManifest(ctx context.Context, path string) context.Context {
	l := FromContext(ctx).With("manifest", path)
	ctx = context.WithValue(ctx, manifestKey, path)
	return WithLogger(ctx, l)
}

func WithARK(ctx context.Context, ark string) context.Context {
	return WithLogger(ctx, FromContext(ctx).With("ark", ark))
}

func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

func Manifest(ctx context.Context) string {
	if p, ok := ctx.Value(manifestKey).(string); ok {
		return p
	}
	return ""
}

func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
