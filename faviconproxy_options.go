package faviconproxy

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/caasmo/faviconproxy/config"
	"github.com/juju/clock"
	phuslog "github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
)

type initializer struct {
	logger     *slog.Logger
	getenv     func(string) string
	clock      clock.Clock
	httpClient *http.Client
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

type Option func(*initializer)

// WithLogger replaces the logger built from the Log config section.
func WithLogger(l *slog.Logger) Option {
	return func(i *initializer) {
		i.logger = l
	}
}

// WithGetenv sets the environment lookup, os.Getenv by default.
func WithGetenv(getenv func(string) string) Option {
	return func(i *initializer) {
		i.getenv = getenv
	}
}

func WithClock(c clock.Clock) Option {
	return func(i *initializer) {
		i.clock = c
	}
}

// WithHTTPClient sets the client used for outbound fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(i *initializer) {
		i.httpClient = c
	}
}

// WithRegistry registers and serves metrics on reg instead of the
// prometheus default registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(i *initializer) {
		i.registerer = reg
		i.gatherer = reg
	}
}

// NewLogger builds the process logger: phuslu/log's JSON handler, or the
// standard text handler when Format is "text".
func NewLogger(cfg config.Log, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level.Level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(phuslog.SlogNewJSONHandler(w, opts))
}
