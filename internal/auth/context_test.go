package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestWithAuthAndFromContext(t *testing.T) {
	id := uuid.New()
	ac := AuthContext{
		UserID: id,
		Role:   "admin",
		Email:  "coach@example.com",
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != id {
		t.Errorf("UserID = %s, want %s", got.UserID, id)
	}
	if got.Role != "admin" {
		t.Errorf("Role = %q, want %q", got.Role, "admin")
	}
	if got.Email != "coach@example.com" {
		t.Errorf("Email = %q", got.Email)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestUserID(t *testing.T) {
	id := uuid.New()
	ctx := WithAuth(context.Background(), AuthContext{UserID: id})
	if UserID(ctx) != id {
		t.Errorf("UserID = %s, want %s", UserID(ctx), id)
	}
}

func TestUserIDMissing(t *testing.T) {
	if UserID(context.Background()) != uuid.Nil {
		t.Error("expected nil uuid for missing context")
	}
}

func TestIsAdmin(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleService} {
		ctx := WithAuth(context.Background(), AuthContext{Role: role})
		if !IsAdmin(ctx) {
			t.Errorf("expected IsAdmin = true for %s role", role)
		}
	}
}

func TestIsAdminFalse(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{Role: "authenticated"})
	if IsAdmin(ctx) {
		t.Error("expected IsAdmin = false for member role")
	}
}

func TestIsAdminMissing(t *testing.T) {
	if IsAdmin(context.Background()) {
		t.Error("expected IsAdmin = false for missing context")
	}
}
