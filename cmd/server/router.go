package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	evidencehandler "evidentia/internal/evidence/handler"
	"evidentia/internal/platform/metrics"
	tenanthandler "evidentia/internal/tenant/handler"
	"evidentia/pkg/platform/httputil"
	"evidentia/pkg/platform/middleware/admin"
	"evidentia/pkg/platform/middleware/auth"
	"evidentia/pkg/platform/middleware/metadata"
	"evidentia/pkg/platform/middleware/request"
	"evidentia/pkg/platform/middleware/requesttime"
)

type routerDeps struct {
	logger     *slog.Logger
	gatherer   prometheus.Gatherer
	httpMetric *metrics.Metrics
	validator  auth.JWTValidator
	adminToken string
	evidence   *evidencehandler.Handler
	tenants    *tenanthandler.Handler
	ready      func(ctx context.Context) error
}

// newRouter assembles the middleware chain: correlation ID and request time
// first so every later log line and record carries them, then tracing and
// metrics, then per-group authentication.
func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(chimw.Recoverer)
	r.Use(d.httpMetric.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.ready(ctx); err != nil {
			d.logger.WarnContext(ctx, "readiness check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(d.adminToken, d.logger))
		d.tenants.RegisterAdmin(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.validator, d.logger))
		d.evidence.Register(r)
		d.tenants.Register(r)
	})

	return otelhttp.NewHandler(r, "evidentia.http")
}
