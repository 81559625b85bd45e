package prerouter

import (
	"net/http"

	"github.com/caasmo/faviconproxy/core"
)

// Maintenance handles serving a maintenance message based on configuration.
type Maintenance struct {
	app *core.App
}

func NewMaintenance(app *core.App) *Maintenance {
	return &Maintenance{
		app: app,
	}
}

// Execute answers 503 with the configured message while maintenance is
// activated, for every path including the metrics endpoint.
func (m *Maintenance) Execute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := m.app.Config().Maintenance
		if !cfg.Activated {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Retry-After", "300")
		core.WriteText(w, http.StatusServiceUnavailable, cfg.Message)
	})
}
