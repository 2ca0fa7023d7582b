package server

import (
	"net/http"
	"time"

	"github.com/florinutz/rowsync/health"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMetricsServer creates the HTTP server for the health, readiness and
// metrics endpoints. Used when metrics_addr is set. A nil checker or
// readiness leaves the corresponding route unregistered.
func NewMetricsServer(addr string, checker *health.Checker, readiness *health.ReadinessChecker) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      Router(checker, readiness),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Router returns the chi router behind NewMetricsServer.
func Router(checker *health.Checker, readiness *health.ReadinessChecker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if checker != nil {
		r.Get("/healthz", checker.ServeHTTP)
	}
	if readiness != nil {
		r.Get("/readyz", readiness.ServeHTTP)
	}
	r.Handle("/metrics", promhttp.Handler())
	return r
}
