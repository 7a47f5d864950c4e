package auth

import (
	"context"

	"github.com/taskflow/taskflow/internal/model"
)

type userKey struct{}

// ContextWithUser stores the authenticated caller in ctx.
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated caller, or nil.
func UserFromContext(ctx context.Context) *model.User {
	user, ok := ctx.Value(userKey{}).(*model.User)
	if !ok {
		return nil
	}
	return user
}

// MustUserFromContext panics when the auth middleware has not run.
func MustUserFromContext(ctx context.Context) *model.User {
	user := UserFromContext(ctx)
	if user == nil {
		panic("auth: no user in context; route is missing the Auth middleware")
	}
	return user
}

// UserIDFromContext returns the caller id, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	if user := UserFromContext(ctx); user != nil {
		return user.ID
	}
	return ""
}
