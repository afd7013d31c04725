package http

import (
	"context"
	"net/http"
	"strings"

	"kitchenhub-backend/internal/security"
)

type contextKey string

const claimsContextKey contextKey = "manager_claims"

// AuthMiddleware validates the bearer token and requires a manager or
// admin role before any overstay route is reached.
func AuthMiddleware(tokenManager security.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				writeError(w, http.StatusUnauthorized, "authorization header must use the Bearer scheme")
				return
			}

			claims, err := tokenManager.ValidateToken(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			if !claims.HasRole(security.RoleManager) && !claims.HasRole(security.RoleAdmin) {
				writeError(w, http.StatusForbidden, "manager role required")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the authenticated principal stored by
// AuthMiddleware.
func ClaimsFromContext(ctx context.Context) (*security.ManagerClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*security.ManagerClaims)
	return claims, ok
}
