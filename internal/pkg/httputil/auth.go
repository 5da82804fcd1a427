package httputil

import (
	"context"
	"net/http"
	"strings"

	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/sis-teknik/servicedesk/internal/pkg/ctxlog"
)

type contextKey string

const (
	usernameKey contextKey = "username"
	roleKey     contextKey = "role"
)

// TokenValidator resolves a bearer token to the account it was issued for.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (username string, role domain.Role, err error)
}

// AuthMiddleware requires a valid "Authorization: Bearer" header and stores
// the username and role in the request context.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
			if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
				Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			username, role, err := validator.ValidateToken(r.Context(), strings.TrimSpace(token))
			if err != nil {
				Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), usernameKey, username)
			ctx = context.WithValue(ctx, roleKey, role)
			ctx = ctxlog.With(ctx, "user", username)
			setAccessUser(ctx, username)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects accounts below minRole. It must run after AuthMiddleware.
func RequireRole(minRole domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetRole(r.Context())
			if role == "" {
				Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !role.HasPermission(minRole) {
				Error(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUsername returns the authenticated username, or "" for anonymous requests.
func GetUsername(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey).(string)
	return username
}

// GetRole returns the authenticated role, or "" for anonymous requests.
func GetRole(ctx context.Context) domain.Role {
	role, _ := ctx.Value(roleKey).(domain.Role)
	return role
}
