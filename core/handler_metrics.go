package core

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves Prometheus metrics in the standard format
// Endpoint: GET /metrics (configurable)
// Authenticated: No
func (a *App) MetricsHandler() http.Handler {
	h := promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Deactivation takes effect on config reload without re-routing.
		if !a.Config().Metrics.Activated {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}
