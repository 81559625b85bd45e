package core

import (
	"net/http"

	"github.com/caasmo/faviconproxy/router"
)

// Route registers the service endpoints on r and keeps r as the app router.
// Every path that is not a fixed endpoint names a domain. The metrics route
// is registered whenever an endpoint is configured; MetricsHandler answers
// 404 while metrics are deactivated.
func (a *App) Route(r router.Router) {
	cfg := a.Config()

	r.Handle("/", a.logged(http.HandlerFunc(IndexHandler)))
	r.Handle("/favicon.ico", a.logged(http.HandlerFunc(FaviconHandler)))
	if cfg.Metrics.Endpoint != "" {
		r.Handle(cfg.Metrics.Endpoint, a.logged(a.MetricsHandler()))
	}
	r.Fallback(http.HandlerFunc(a.IconHandler))

	a.router = r
}

// logged writes the request line before h runs.
func (a *App) logged(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := a.guard.Log(r)
		if rec, ok := w.(*ResponseRecorder); ok {
			rec.RequestID = v.RequestID
		}
		h.ServeHTTP(w, r)
	})
}
