package faviconproxy

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/caasmo/faviconproxy/cache"
	"github.com/caasmo/faviconproxy/cache/ristretto"
	"github.com/caasmo/faviconproxy/config"
	"github.com/caasmo/faviconproxy/core"
	"github.com/caasmo/faviconproxy/core/prerouter"
	"github.com/caasmo/faviconproxy/fetch"
	"github.com/caasmo/faviconproxy/notify/discord"
	"github.com/caasmo/faviconproxy/router"
	"github.com/caasmo/faviconproxy/router/httprouter"
	"github.com/caasmo/faviconproxy/server"
	"github.com/caasmo/faviconproxy/throttle"
	"github.com/prometheus/client_golang/prometheus"
)

// blocked IPs kept by the circuit breaker at most
const blockedIPMaxEntries = 10000

// New loads the configuration at configPath, empty for defaults plus
// environment, and builds the app and the server serving it.
func New(configPath string, opts ...Option) (*core.App, *server.Server, error) {
	in := &initializer{
		getenv:     os.Getenv,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(in)
	}

	cfg, err := config.Load(configPath, in.getenv)
	if err != nil {
		slog.Error("failed to load initial config", "error", err)
		return nil, nil, err
	}
	configProvider := config.NewProvider(cfg)

	logger := in.logger
	if logger == nil {
		logger = NewLogger(cfg.Log, os.Stderr)
	}

	banned := loadBanned(cfg.Referrers.BannedFile, logger)

	tracker := throttle.New(throttle.Params{
		Window:             cfg.Throttle.Window.Duration,
		AggressiveInterval: cfg.Throttle.AggressiveInterval.Duration,
		Lockdown:           cfg.Throttle.Lockdown.Duration,
		Capacity:           cfg.Throttle.Capacity,
	}, in.clock)

	fetcher := fetch.New(in.httpClient,
		fetch.NewHostDetector(cfg.Server.SelfDomain),
		logger,
		fetch.WithUserAgent(cfg.Fetch.UserAgent),
		fetch.WithMaxRedirects(cfg.Fetch.MaxRedirects),
		fetch.WithVerbose(cfg.Fetch.Verbose),
	)

	appOpts := []core.Option{
		core.WithConfigProvider(configProvider),
		core.WithLogger(logger),
		core.WithGatherer(in.gatherer),
		core.WithTracker(tracker),
		core.WithFetcher(fetcher),
		core.WithBannedReferrers(banned),
	}
	if in.clock != nil {
		appOpts = append(appOpts, core.WithClock(in.clock))
	}
	if cfg.ScrapeCache.Activated {
		scraped, err := ristretto.New[string](cfg.ScrapeCache.MaxEntries)
		if err != nil {
			logger.Error("failed to create scrape cache", "error", err)
			return nil, nil, err
		}
		appOpts = append(appOpts, core.WithScrapeCache(scraped))
	}

	if cfg.Discord.Activated {
		notifier, err := discord.New(cfg.Discord, logger)
		if err != nil {
			logger.Error("failed to create discord notifier", "error", err)
			return nil, nil, err
		}
		appOpts = append(appOpts, core.WithNotifier(notifier))
	}

	app, err := core.NewApp(appOpts...)
	if err != nil {
		logger.Error("failed to initialize core app", "error", err)
		return nil, nil, err
	}
	app.Route(httprouter.New())

	blocked, err := ristretto.New[struct{}](blockedIPMaxEntries)
	if err != nil {
		logger.Error("failed to create blocked IP cache", "error", err)
		return nil, nil, err
	}
	handler := preRouter(app, in.registerer, blocked)

	reload := func() error {
		return Reload(app, configPath, in.getenv)
	}
	srv := server.NewServer(configProvider, handler, logger, reload)

	return app, srv, nil
}

// preRouter puts the response metrics, the maintenance switch and the circuit
// breaker in front of the app router.
func preRouter(app *core.App, reg prometheus.Registerer, blocked cache.Cache[string, struct{}]) http.Handler {
	return router.NewChain(app.Router()).
		WithMiddleware(
			prerouter.NewRecorder(app).Execute,
			prerouter.NewMetrics(app, reg).Execute,
			prerouter.NewMaintenance(app).Execute,
			prerouter.NewBlockIp(app, blocked).Execute,
		).
		Handler()
}

// Reload re-reads the configuration and the banned referrer list. On error
// the running configuration is kept. Throttle and fetch settings are fixed at
// startup.
func Reload(app *core.App, configPath string, getenv func(string) string) error {
	cfg, err := config.Load(configPath, getenv)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	app.ConfigProvider().Update(cfg)
	app.SetBannedReferrers(loadBanned(cfg.Referrers.BannedFile, app.Logger()))
	return nil
}

// loadBanned reads the banned referrer list. A missing or unreadable list
// bans nothing.
func loadBanned(path string, logger *slog.Logger) *config.HostSet {
	if path == "" {
		return config.NewHostSet()
	}
	set, err := config.LoadHostSet(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("banned referrers file not found, no referrer is banned", "path", path)
		return set
	case err != nil:
		logger.Error("failed to read banned referrers, no referrer is banned", "path", path, "error", err)
		return config.NewHostSet()
	}
	logger.Info("banned referrers loaded", "path", path, "count", set.Len())
	return set
}
