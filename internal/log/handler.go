package log

import (
	"context"
	"log/slog"

	"github.com/ErlanBelekov/signage-scheduler/internal/requestid"
)

type scheduleKey struct{}

// WithScheduleID tags ctx so every record logged with it carries schedule_id.
func WithScheduleID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, scheduleKey{}, id)
}

// ContextHandler wraps an slog.Handler and copies correlation values
// (request_id, schedule_id) from the context onto each record.
type ContextHandler struct {
	inner slog.Handler
}

func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := requestid.FromContext(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	if id, ok := ctx.Value(scheduleKey{}).(string); ok {
		r.AddAttrs(slog.String("schedule_id", id))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
