// Package observability carries per-build log context through context.Context
// so that stage and deploy logs can be correlated with the build that
// produced them.
package observability

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/packler/internal/logfields"
)

// LogContext is the correlation data attached to a context.
type LogContext struct {
	BuildID string
	Stage   string
}

type logContextKeyType struct{}

var logContextKey logContextKeyType

// WithBuildID returns a context tagged with a build ID.
func WithBuildID(ctx context.Context, buildID string) context.Context {
	lc := FromContext(ctx)
	lc.BuildID = buildID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithStage returns a context tagged with a stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	lc := FromContext(ctx)
	lc.Stage = stage
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the LogContext stored in ctx, or the zero value.
func FromContext(ctx context.Context) LogContext {
	if ctx == nil {
		return LogContext{}
	}
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

// Attrs returns the non-empty fields of the context's LogContext.
func Attrs(ctx context.Context) []any {
	lc := FromContext(ctx)
	attrs := make([]any, 0, 2)
	if lc.BuildID != "" {
		attrs = append(attrs, logfields.BuildID(lc.BuildID))
	}
	if lc.Stage != "" {
		attrs = append(attrs, logfields.Stage(lc.Stage))
	}
	return attrs
}

// Logger returns the default logger decorated with the context's fields.
func Logger(ctx context.Context) *slog.Logger {
	attrs := Attrs(ctx)
	if len(attrs) == 0 {
		return slog.Default()
	}
	return slog.Default().With(attrs...)
}
