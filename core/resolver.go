package core

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/caasmo/faviconproxy/cache"
	"github.com/caasmo/faviconproxy/config"
	"github.com/caasmo/faviconproxy/failure"
	"github.com/caasmo/faviconproxy/fetch"
	"github.com/caasmo/faviconproxy/scrape"
)

// scrape cache entries all cost the same
const scrapeCacheCost = 1

// Resolver turns a validated domain into a live icon stream.
type Resolver struct {
	configProvider *config.Provider
	fetcher        *fetch.Fetcher
	scraped        cache.Cache[string, string]
	logger         *slog.Logger
}

// NewResolver creates a resolver. scraped may be nil.
func NewResolver(provider *config.Provider, fetcher *fetch.Fetcher, scraped cache.Cache[string, string], logger *slog.Logger) *Resolver {
	return &Resolver{
		configProvider: provider,
		fetcher:        fetcher,
		scraped:        scraped,
		logger:         logger,
	}
}

// Resolve returns the icon of domain. The caller must close the outcome.
//
// A known icon override is fetched directly. Otherwise the canonical
// /favicon.ico is tried; a non image 200 or a 404 falls back to the icon
// declared in the home page.
func (rs *Resolver) Resolve(ctx context.Context, domain string) (*fetch.Outcome, error) {
	cfg := rs.configProvider.Get()

	if icon, ok := cfg.KnownIcons[domain]; ok {
		return rs.fetcher.Fetch(ctx, icon, 0, false)
	}

	out, err := rs.fetcher.Fetch(ctx, "http://"+domain+"/favicon.ico", 0, true)
	if err == nil {
		return out, nil
	}
	if !recoverable(err) {
		return nil, err
	}

	icon, err := rs.scrapeIcon(ctx, cfg, domain)
	if err != nil {
		return nil, err
	}
	return rs.fetcher.Fetch(ctx, icon, 0, false)
}

// recoverable reports whether the canonical fetch failure triggers the
// scrape fallback.
func recoverable(err error) bool {
	var fe *failure.Error
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.Kind {
	case failure.KindBadContentType:
		return true
	case failure.KindUpstreamStatus:
		return fe.Status == http.StatusNotFound
	}
	return false
}

func (rs *Resolver) scrapeIcon(ctx context.Context, cfg *config.Config, domain string) (string, error) {
	useCache := rs.scraped != nil && cfg.ScrapeCache.Activated
	if useCache {
		if icon, ok := rs.scraped.Get(domain); ok {
			return icon, nil
		}
	}

	page, err := rs.fetcher.Fetch(ctx, "http://"+domain+"/", 0, false)
	if err != nil {
		return "", err
	}
	defer page.Close()

	html, err := fetch.ReadHTML(page.Body, cfg.Fetch.HTMLMaxChunks, cfg.Fetch.HTMLChunkSize)
	if err != nil {
		return "", err
	}

	icon, ok := scrape.Scrape(html, domain)
	if !ok {
		return "", failure.NoFavicon()
	}

	if useCache && !rs.scraped.SetWithTTL(domain, icon, scrapeCacheCost, cfg.ScrapeCache.TTL.Duration) {
		rs.logger.Debug("scrape cache rejected entry", "domain", domain)
	}
	return icon, nil
}
