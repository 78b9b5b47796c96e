package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/auth"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func userClaims(sub string, role string, ttl time.Duration) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Role: role,
	}
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuthNoToken(t *testing.T) {
	handler := RequireAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	rec := serve(handler, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}
}

func TestRequireAuthRejectsBadTokens(t *testing.T) {
	uid := uuid.NewString()
	tests := map[string]string{
		"garbage":      "not-a-jwt",
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), userClaims(uid, "authenticated", time.Hour)),
		"expired":      signToken(t, jwt.SigningMethodHS256, testSecret, userClaims(uid, "authenticated", -time.Minute)),
		"wrong alg":    signToken(t, jwt.SigningMethodHS512, testSecret, userClaims(uid, "authenticated", time.Hour)),
		"bad subject":  signToken(t, jwt.SigningMethodHS256, testSecret, userClaims("user-7", "authenticated", time.Hour)),
		"no subject":   signToken(t, jwt.SigningMethodHS256, testSecret, userClaims("", "authenticated", time.Hour)),
	}
	handler := RequireAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if rec := serve(handler, token); rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	uid := uuid.New()
	claims := userClaims(uid.String(), "authenticated", time.Hour)
	claims.Email = "member@example.com"
	token := signToken(t, jwt.SigningMethodHS256, testSecret, claims)

	var gotAC auth.AuthContext
	handler := RequireAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		gotAC = ac
		w.WriteHeader(http.StatusOK)
	}))

	rec := serve(handler, token)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotAC.UserID != uid {
		t.Errorf("UserID = %s, want %s", gotAC.UserID, uid)
	}
	if gotAC.Role != "authenticated" || gotAC.Email != "member@example.com" {
		t.Errorf("AuthContext = %+v", gotAC)
	}
}

func TestParseTokenAdminMetadata(t *testing.T) {
	claims := userClaims(uuid.NewString(), "authenticated", time.Hour)
	claims.AppMetadata.Role = "admin"
	ac, err := ParseToken(signToken(t, jwt.SigningMethodHS256, testSecret, claims), testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if ac.Role != auth.RoleAdmin {
		t.Errorf("Role = %q, want admin", ac.Role)
	}
}

func TestServiceRoleIsAdminButNotUser(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, testSecret, userClaims("", auth.RoleService, time.Hour))
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	if rec := serve(RequireAuth(testSecret)(RequireAdmin(ok)), token); rec.Code != http.StatusOK {
		t.Errorf("admin route status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec := serve(RequireAuth(testSecret)(RequireUser(ok)), token); rec.Code != http.StatusForbidden {
		t.Errorf("user route status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequireAdminAllowed(t *testing.T) {
	ctx := auth.WithAuth(context.Background(), auth.AuthContext{Role: "admin"})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAdminForbidden(t *testing.T) {
	ctx := auth.WithAuth(context.Background(), auth.AuthContext{Role: "authenticated"})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
