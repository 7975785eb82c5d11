// Package middleware holds the HTTP middleware stack: request logging,
// panic recovery, rate limiting, CORS, tracing and admin authentication.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/eshop/pkg/auth"
	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/response"
)

type claimsKey struct{}

// WithClaims stores verified token claims in ctx.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromCtx returns the claims stored by Auth.
func ClaimsFromCtx(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok && c != nil
}

// RoleFromCtx returns the authenticated role.
func RoleFromCtx(r *http.Request) (string, bool) {
	c, ok := ClaimsFromCtx(r.Context())
	if !ok {
		return "", false
	}
	return c.Role, true
}

// UserIDFromCtx returns the authenticated admin id.
func UserIDFromCtx(r *http.Request) (uint, bool) {
	c, ok := ClaimsFromCtx(r.Context())
	if !ok {
		return 0, false
	}
	return c.AdminID, true
}

// BearerToken extracts the token from "Authorization: Bearer <t>" or, for
// WebSocket upgrades that cannot set headers, the ?token= query parameter.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Auth rejects requests without a valid admin token and stores its claims.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			response.Unauthorized(w)
			return
		}

		claims, err := auth.ParseToken(token)
		if err != nil {
			logger.WithCtx(r.Context()).Info("auth: token rejected", "error", err)
			response.Unauthorized(w)
			return
		}

		ctx := WithClaims(r.Context(), claims)
		ctx = logger.InjectLogger(ctx, logger.WithCtx(ctx).With("admin_id", claims.AdminID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
