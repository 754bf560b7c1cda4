package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mactrac-proxy/internal/domain"
	"github.com/mactrac-proxy/internal/transport/http/respond"
)

type contextKey string

const SessionKey contextKey = "session"

// TokenValidator resolves an opaque bearer token to its session.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.Session, error)
}

// Auth returns middleware that validates the Bearer token and injects the session into context.
func Auth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				respond.Error(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			sess, err := v.ValidateToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					respond.Error(w, http.StatusUnauthorized, "invalid or expired token")
					return
				}
				slog.ErrorContext(r.Context(), "session lookup failed", "err", err)
				respond.Error(w, http.StatusInternalServerError, "session lookup failed")
				return
			}
			ctx := context.WithValue(r.Context(), SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext extracts the authenticated session from the request context.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(SessionKey).(*domain.Session)
	return s, ok
}
