package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextAdminKey ctxKey = "adminID"

// AdminFromContext returns the identity of the authenticated
// administrator, or "" when the request carries no admin token.
func AdminFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if adminID, ok := ctx.Value(ContextAdminKey).(string); ok {
		return adminID
	}
	return ""
}

func ContextWithAdmin(ctx context.Context, adminID string) context.Context {
	return context.WithValue(ctx, ContextAdminKey, adminID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
