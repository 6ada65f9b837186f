// Package httptransport assembles the public HTTP surface.
package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"identity-proxy/pkg/platform/httputil"
	"identity-proxy/pkg/platform/middleware/metadata"
	request "identity-proxy/pkg/platform/middleware/request"
	"identity-proxy/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by domain handler packages.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports backing-store health for the readiness endpoint.
type HealthChecker func(ctx context.Context) error

// NewRouter wires the shared middleware chain, operational endpoints, and
// every domain handler.
func NewRouter(checks map[string]HealthChecker, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(request.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", handleHealth(checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, handler := range handlers {
		handler.Register(r)
	}

	return r
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		result := make(map[string]string, len(checks)+1)
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = "unhealthy"
				continue
			}
			result[name] = "ok"
		}
		if status == http.StatusOK {
			result["status"] = "ok"
		} else {
			result["status"] = "degraded"
		}
		httputil.WriteJSON(w, status, result)
	}
}
