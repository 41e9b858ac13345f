package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shelfmark/shelfmark/internal/platform/httpx"
	"github.com/shelfmark/shelfmark/internal/token"
)

type claimsContextKey struct{}
type rawTokenContextKey struct{}

// Middleware guards protected routes with bearer-token checks.
type Middleware struct {
	codec  *token.Codec
	logger *slog.Logger
}

// NewMiddleware constructs the auth middleware.
func NewMiddleware(codec *token.Codec, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{codec: codec, logger: logger}
}

// RequireAuth verifies the bearer access token signature and expiry, then
// stores the claims and the raw token in the request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := BearerToken(r)
		if raw == "" {
			httpx.Error(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := m.codec.VerifyAccess(raw)
		if err != nil {
			m.logger.Debug("access token rejected", slog.Any("reason", err))
			httpx.Error(w, r, http.StatusUnauthorized, "invalid access token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		ctx = context.WithValue(ctx, rawTokenContextKey{}, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles allows the request through only when the token's role id is a
// member of the allowed set. Role extraction uses Decode, which does NOT
// verify the signature: this guard is only safe mounted after RequireAuth,
// which authenticates the same token first. Keep that ordering.
func (m *Middleware) RequireRoles(allowed ...int) func(http.Handler) http.Handler {
	allowedSet := make(map[int]struct{}, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := RawTokenFromContext(r.Context())
			if raw == "" {
				raw = BearerToken(r)
			}
			if raw == "" {
				httpx.Error(w, r, http.StatusForbidden, "forbidden")
				return
			}
			claims, err := m.codec.Decode(raw)
			if err != nil {
				m.logger.Debug("role guard decode failed", slog.Any("reason", err))
				httpx.Error(w, r, http.StatusForbidden, "forbidden")
				return
			}
			if _, ok := allowedSet[claims.RoleID]; !ok {
				httpx.Error(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// ClaimsFromContext returns the verified claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) *token.Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(*token.Claims)
	return claims
}

// RawTokenFromContext returns the bearer token stored by RequireAuth.
func RawTokenFromContext(ctx context.Context) string {
	raw, _ := ctx.Value(rawTokenContextKey{}).(string)
	return raw
}
