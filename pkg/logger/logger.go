// Package logger provides the process-wide structured logger built on log/slog.
//
// Handlers and services log through WithCtx so every line carries the
// request id (and trace id when a span is active):
//
//	log := logger.WithCtx(r.Context())
//	log.Info("order paid", "order", order.Number)
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"

	"github.com/shashiranjanraj/eshop/config"
)

var L *slog.Logger

func init() {
	L = New(os.Stdout, config.AppEnv())
	slog.SetDefault(L)
}

// New builds a logger for env: JSON at INFO in production, text at DEBUG
// everywhere else.
func New(w io.Writer, env string) *slog.Logger {
	switch env {
	case "production", "prod":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "test", "testing":
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// SetOutput swaps the global logger, returning the previous one so tests
// can restore it.
func SetOutput(l *slog.Logger) *slog.Logger {
	prev := L
	L = l
	slog.SetDefault(l)
	return prev
}

type ctxKey struct{}

// WithCtx returns the request-scoped logger stored by the Logger middleware.
// Outside a request it returns the base logger, tagged with trace_id when a
// span is active.
func WithCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return L.With("trace_id", sc.TraceID().String())
	}
	return L
}

// InjectLogger stores log into ctx.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
