// Package request assigns every request an ID for log and audit correlation.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"identity-proxy/pkg/requestcontext"
)

const headerRequestID = "X-Request-ID"

// Middleware takes the caller-supplied X-Request-ID or mints one, stores it
// in the context, and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
