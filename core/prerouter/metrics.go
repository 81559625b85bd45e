package prerouter

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/caasmo/faviconproxy/core"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricRequestsName = "http_server_requests_total"
	metricRequestsHelp = "Total number of HTTP requests handled by the server, labeled by status code."

	metricDurationName = "http_server_request_duration_seconds"
	metricDurationHelp = "Time until the response was fully written, labeled by status code."

	statusCodeLabelName = "code"
)

// Metrics counts responses by status code. It needs the Recorder before it
// in the chain.
type Metrics struct {
	app             *core.App
	clock           clock.Clock
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg and panics if that fails, as
// a duplicate registration is a wiring bug.
func NewMetrics(app *core.App, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricRequestsName,
			Help: metricRequestsHelp,
		},
		[]string{statusCodeLabelName},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: metricDurationName,
			Help: metricDurationHelp,
			// Icons stream from remote sites, so the tail is long.
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{statusCodeLabelName},
	)

	reg.MustRegister(requestsTotal, requestDuration)

	return &Metrics{
		app:             app,
		clock:           app.Clock(),
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
	}
}

// Execute is the middleware handler function that wraps the next http.Handler
// to collect metrics.
func (m *Metrics) Execute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.app.Config().Metrics.Activated {
			next.ServeHTTP(w, r)
			return
		}

		rec, ok := w.(*core.ResponseRecorder)
		if !ok {
			m.app.Logger().Error("metrics middleware: expected core.ResponseRecorder",
				slog.String("got", fmt.Sprintf("%T", w)))
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(rec, r)

		code := strconv.Itoa(rec.Status)
		m.requestsTotal.WithLabelValues(code).Inc()
		m.requestDuration.WithLabelValues(code).Observe(elapsed(m.clock, rec).Seconds())
	})
}
