// Package auth gates handlers behind bearer access tokens. A token
// authenticates when the session resolver maps it to an active proxy bound to
// an identity; everything else gets one uniform 401 so callers cannot probe
// token state through the middleware.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"identity-proxy/internal/session"
	request "identity-proxy/pkg/platform/middleware/request"
	"identity-proxy/pkg/requestcontext"
)

// SessionResolver maps a bearer access token to its session.
type SessionResolver interface {
	Resolve(ctx context.Context, accessToken string) (session.Session, error)
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Missing or invalid access token"}`))
}

// RequireAuth resolves the Authorization bearer token and populates the
// context with the proxy id and identity address for downstream handlers.
func RequireAuth(resolver SessionResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", request.GetRequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			sess, err := resolver.Resolve(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeUnauthorized(w)
				return
			}

			ctx = requestcontext.WithProxyID(ctx, sess.ProxyID)
			ctx = requestcontext.WithIdentityAddress(ctx, sess.IdentityAddress)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
