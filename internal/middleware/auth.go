package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ladyboss/academy/internal/auth"
)

// Claims are the fields read from the managed backend's access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role        string      `json:"role"`
	Email       string      `json:"email,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata,omitempty"`
}

type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

var errMissingToken = errors.New("missing bearer token")

// ParseToken validates an HS256 access token and returns its auth context.
// Service role tokens carry no subject; every other token must name a user.
func ParseToken(tokenString string, secret []byte) (auth.AuthContext, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return auth.AuthContext{}, err
	}

	role := claims.Role
	if claims.AppMetadata.Role == auth.RoleAdmin {
		role = auth.RoleAdmin
	}
	ac := auth.AuthContext{Role: role, Email: claims.Email}
	if claims.Subject != "" {
		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			return auth.AuthContext{}, errors.New("token subject is not a user id")
		}
		ac.UserID = id
	} else if role != auth.RoleService {
		return auth.AuthContext{}, errors.New("token has no subject")
	}
	return ac, nil
}

// bearerToken reads the Authorization header. Browsers cannot set headers
// on a websocket upgrade, so upgrades may pass access_token in the query.
func bearerToken(r *http.Request) (string, error) {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		return token, nil
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, nil
		}
	}
	return "", errMissingToken
}

// RequireAuth validates the bearer token and populates AuthContext.
func RequireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				unauthorized(w)
				return
			}
			ac, err := ParseToken(token, secret)
			if err != nil {
				unauthorized(w)
				return
			}
			setRequestUser(r.Context(), ac.UserID)
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireUser rejects service tokens that carry no user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserID(r.Context()) == uuid.Nil {
			writeError(w, http.StatusForbidden, "user token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin checks that the authenticated caller is an admin or the
// service role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
