package requestid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// New returns a time-ordered UUID v7, falling back to v4 if the clock read fails.
// Driver ticks use the same ids as HTTP requests so their logs correlate the same way.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns "" if ctx carries no id.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
