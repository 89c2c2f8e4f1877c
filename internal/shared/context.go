package shared

import "context"

type sessionContextKey struct{}

type currentUserContextKey struct{}

// CurrentUser carries the authenticated identity through request context.
// Kept deliberately small so feature packages never import each other.
type CurrentUser struct {
	ID      int64
	Email   string
	Name    string
	Role    string
	IsStaff bool
}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithUser stores the authenticated user in context.
func ContextWithUser(ctx context.Context, user *CurrentUser) context.Context {
	return context.WithValue(ctx, currentUserContextKey{}, user)
}

// UserFromContext extracts the authenticated user, nil when anonymous.
func UserFromContext(ctx context.Context) *CurrentUser {
	user, _ := ctx.Value(currentUserContextKey{}).(*CurrentUser)
	return user
}
