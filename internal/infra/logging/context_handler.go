package logging

import (
	"context"
	"log/slog"

	context_ "github.com/mkrupp/csrf-target/internal/infra/context"
)

// ContextHandler wraps another slog.Handler to add request-scoped values
// from the context to all log records:
// - trace.id from the tracing middleware
// - session.id (truncated) and session.auth from the session middleware.
type ContextHandler struct {
	h slog.Handler
}

var _ slog.Handler = (*ContextHandler)(nil)

// NewContextHandler creates a new ContextHandler wrapping the given handler.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{h: h}
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID, ok := context_.TraceIDFromContext(ctx); ok {
		r.AddAttrs(slog.Group("trace",
			slog.String("id", traceID),
		))
	}

	if session, ok := context_.SessionFromContext(ctx); ok {
		r.AddAttrs(slog.Group("session",
			slog.String("id", session.PreviewID()),
			slog.Bool("auth", session.Authenticated()),
		))
	}

	//nolint:wrapcheck
	return h.h.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) Handler {
	return NewContextHandler(h.h.WithAttrs(attrs))
}

// WithGroup implements slog.Handler.WithGroup.
func (h *ContextHandler) WithGroup(name string) Handler {
	return NewContextHandler(h.h.WithGroup(name))
}

// Enabled implements slog.Handler.Enabled.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}
