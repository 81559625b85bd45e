package core

import (
	"log/slog"

	"github.com/caasmo/faviconproxy/cache"
	"github.com/caasmo/faviconproxy/config"
	"github.com/caasmo/faviconproxy/fetch"
	"github.com/caasmo/faviconproxy/notify"
	"github.com/caasmo/faviconproxy/router"
	"github.com/caasmo/faviconproxy/throttle"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
)

type options struct {
	router         router.Router
	configProvider *config.Provider
	logger         *slog.Logger
	clock          clock.Clock
	gatherer       prometheus.Gatherer
	tracker        *throttle.Tracker
	fetcher        *fetch.Fetcher
	banned         *config.HostSet
	scrapeCache    cache.Cache[string, string]
	notifier       notify.Notifier
}

type Option func(*options)

// WithRouter sets the router implementation
func WithRouter(r router.Router) Option {
	return func(o *options) {
		o.router = r
	}
}

// WithConfigProvider sets the application's configuration provider.
func WithConfigProvider(p *config.Provider) Option {
	return func(o *options) {
		o.configProvider = p
	}
}

// WithLogger sets the logger implementation
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock sets the time source of the request log line.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithGatherer sets the registry served on the metrics endpoint.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *options) {
		o.gatherer = g
	}
}

func WithTracker(t *throttle.Tracker) Option {
	return func(o *options) {
		o.tracker = t
	}
}

func WithFetcher(f *fetch.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

func WithBannedReferrers(set *config.HostSet) Option {
	return func(o *options) {
		o.banned = set
	}
}

// WithScrapeCache enables caching of scraped icon URLs per domain.
func WithScrapeCache(c cache.Cache[string, string]) Option {
	return func(o *options) {
		o.scrapeCache = c
	}
}

// WithNotifier sets where alarms go. Without it they are dropped.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}
