package logging

import (
	"context"
	"log/slog"
	"strings"
)

// FilterHandler drops records below the level configured for the emitting
// logger. Loggers are matched by their dotted name, most specific prefix first:
// a record from "svc.profilesvc.http_transport" consults "svc.profilesvc.http_transport",
// "svc.profilesvc", "svc" and then falls back to Level.
type FilterHandler struct {
	Handler   slog.Handler
	Level     slog.Leveler
	PkgLevels map[string]slog.Level

	name string
}

var _ slog.Handler = (*FilterHandler)(nil)

// NewFilterHandler creates a FilterHandler wrapping the given handler.
func NewFilterHandler(h slog.Handler, level slog.Leveler, pkgLevels map[string]slog.Level) *FilterHandler {
	return &FilterHandler{Handler: h, Level: level, PkgLevels: pkgLevels}
}

// Enabled implements slog.Handler.Enabled.
func (h *FilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.threshold() && h.Handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *FilterHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.threshold() {
		return nil
	}

	//nolint:wrapcheck
	return h.Handler.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.WithAttrs. The logger name is captured
// here because GetLogger binds it with Logger.With.
func (h *FilterHandler) WithAttrs(attrs []slog.Attr) Handler {
	name := h.name

	for _, attr := range attrs {
		if attr.Key == LoggerNameKey {
			name = attr.Value.String()
		}
	}

	return &FilterHandler{
		Handler:   h.Handler.WithAttrs(attrs),
		Level:     h.Level,
		PkgLevels: h.PkgLevels,
		name:      name,
	}
}

// WithGroup implements slog.Handler.WithGroup.
func (h *FilterHandler) WithGroup(name string) Handler {
	return &FilterHandler{
		Handler:   h.Handler.WithGroup(name),
		Level:     h.Level,
		PkgLevels: h.PkgLevels,
		name:      h.name,
	}
}

func (h *FilterHandler) threshold() slog.Level {
	parts := strings.Split(h.name, ".")

	for i := len(parts); i > 0; i-- {
		if level, ok := h.PkgLevels[strings.Join(parts[:i], ".")]; ok {
			return level
		}
	}

	return h.Level.Level()
}
