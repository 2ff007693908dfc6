package middleware

import "context"

type contextKey string

const (
	ctxUserID      contextKey = "user_id"
	ctxRole        contextKey = "actor_role"
	ctxCartSession contextKey = "cart_session"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func CartSessionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCartSession).(string); ok {
		return v
	}
	return ""
}

// WithUserID injects the admin user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithCartSession injects the storefront cart session token.
func WithCartSession(ctx context.Context, token string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCartSession, token)
}
