package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtinfra "github.com/go-magiclink-api/internal/infrastructure/jwt"
)

type contextKey string

const ClaimsKey contextKey = "claims"

// AccessVerifier validates access tokens into claims.
type AccessVerifier interface {
	VerifyAccess(tokenStr string) (*jwtinfra.AccessClaims, error)
}

// Auth returns middleware that authenticates the request and injects the
// access-token claims into context. The token is read from the auth_token
// cookie; API clients that cannot use cookies may send it as a Bearer header
// instead.
func Auth(verifier AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				http.Error(w, `{"error":"no authentication token provided"}`, http.StatusUnauthorized)
				return
			}
			claims, err := verifier.VerifyAccess(tokenStr)
			if err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie("auth_token"); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// ClaimsFromContext extracts access-token claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.AccessClaims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*jwtinfra.AccessClaims)
	return c, ok
}
