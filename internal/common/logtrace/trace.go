package logtrace

import (
	"context"
)

type attemptIDKey struct{}

// WithAttemptID returns a context carrying the login attempt ID.
func WithAttemptID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, attemptIDKey{}, id)
}

// AttemptIDFromContext extracts the login attempt ID from the context.
// Returns an empty string if the context is nil or if no attempt ID is found.
func AttemptIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(attemptIDKey{}).(string)
	if !ok {
		return ""
	}
	return r
}
