// Package usercontext carries the authenticated caller through request contexts.
package usercontext

import "context"

type contextKey string

const (
	userIDKey  contextKey = "user_id"
	isAdminKey contextKey = "is_admin"
)

// WithUser attaches the authenticated user to the context.
func WithUser(ctx context.Context, userID int64, isAdmin bool) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, isAdminKey, isAdmin)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id != 0
}

// IsAdminFromContext reports whether the caller holds administrator privilege.
func IsAdminFromContext(ctx context.Context) bool {
	admin, ok := ctx.Value(isAdminKey).(bool)
	return ok && admin
}
