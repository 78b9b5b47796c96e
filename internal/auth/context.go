package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// Roles carried in access tokens. Anything else is treated as a member.
const (
	RoleAdmin   = "admin"
	RoleService = "service_role"
)

type AuthContext struct {
	UserID uuid.UUID
	Role   string
	Email  string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) uuid.UUID {
	ac, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil
	}
	return ac.UserID
}

// IsAdmin is true for admins and for the backend's service role.
func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == RoleAdmin || ac.Role == RoleService
}
