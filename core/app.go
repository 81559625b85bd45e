package core

import (
	"errors"
	"log/slog"

	"github.com/caasmo/faviconproxy/config"
	"github.com/caasmo/faviconproxy/notify"
	"github.com/caasmo/faviconproxy/router"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// App is the application wide context. It owns the long lived pieces the
// handlers need: the guard in front of the fetch pipeline and the resolver
// behind it.
type App struct {
	router         router.Router
	configProvider *config.Provider
	logger         *slog.Logger
	clock          clock.Clock
	gatherer       prometheus.Gatherer
	notifier       notify.Notifier

	guard    *Guard
	resolver *Resolver
}

func NewApp(opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.configProvider == nil {
		return nil, errors.New("config provider is required (use WithConfigProvider)")
	}
	if o.logger == nil {
		return nil, errors.New("logger is required (use WithLogger)")
	}
	if o.tracker == nil {
		return nil, errors.New("throttle tracker is required (use WithTracker)")
	}
	if o.fetcher == nil {
		return nil, errors.New("fetcher is required (use WithFetcher)")
	}
	if o.clock == nil {
		o.clock = clock.WallClock
	}
	if o.gatherer == nil {
		o.gatherer = prometheus.DefaultGatherer
	}
	if o.notifier == nil {
		o.notifier = notify.NewNilNotifier()
	}

	a := &App{
		router:         o.router,
		configProvider: o.configProvider,
		logger:         o.logger,
		clock:          o.clock,
		gatherer:       o.gatherer,
		notifier:       o.notifier,
	}
	a.guard = NewGuard(o.configProvider, o.tracker, o.logger, o.clock)
	a.guard.SetBanned(o.banned)
	a.resolver = NewResolver(o.configProvider, o.fetcher, o.scrapeCache, o.logger)

	return a, nil
}

// Router returns the application's router instance
func (a *App) Router() router.Router {
	return a.router
}

func (a *App) SetRouter(r router.Router) {
	a.router = r
}

func (a *App) Logger() *slog.Logger {
	return a.logger
}

func (a *App) Config() *config.Config {
	return a.configProvider.Get()
}

func (a *App) ConfigProvider() *config.Provider {
	return a.configProvider
}

func (a *App) Clock() clock.Clock {
	return a.clock
}

func (a *App) Notifier() notify.Notifier {
	return a.notifier
}

func (a *App) Guard() *Guard {
	return a.guard
}

func (a *App) Resolver() *Resolver {
	return a.resolver
}

// SetBannedReferrers swaps the banned referrer set used by the guard.
func (a *App) SetBannedReferrers(set *config.HostSet) {
	a.guard.SetBanned(set)
}
