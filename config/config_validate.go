package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// BlockIpLevels are the accepted values of BlockIp.Level.
var BlockIpLevels = []string{"low", "medium", "high"}

// Validate checks every section and reports all problems at once.
func Validate(cfg *Config) error {
	var result *multierror.Error

	if err := validateServer(&cfg.Server); err != nil {
		result = multierror.Append(result, fmt.Errorf("server: %w", err))
	}
	if err := validateThrottle(&cfg.Throttle); err != nil {
		result = multierror.Append(result, fmt.Errorf("throttle: %w", err))
	}
	if err := validateFetch(&cfg.Fetch); err != nil {
		result = multierror.Append(result, fmt.Errorf("fetch: %w", err))
	}
	if err := validateScrapeCache(&cfg.ScrapeCache); err != nil {
		result = multierror.Append(result, fmt.Errorf("scrape cache: %w", err))
	}
	if err := validateBlockIp(&cfg.BlockIp); err != nil {
		result = multierror.Append(result, fmt.Errorf("block ip: %w", err))
	}
	if err := validateMetrics(&cfg.Metrics); err != nil {
		result = multierror.Append(result, fmt.Errorf("metrics: %w", err))
	}
	if err := validateDiscord(&cfg.Discord); err != nil {
		result = multierror.Append(result, fmt.Errorf("discord: %w", err))
	}
	if err := validateLog(&cfg.Log); err != nil {
		result = multierror.Append(result, fmt.Errorf("log: %w", err))
	}
	for domain, icon := range cfg.KnownIcons {
		if err := validateKnownIcon(domain, icon); err != nil {
			result = multierror.Append(result, fmt.Errorf("known icons: %w", err))
		}
	}

	return result.ErrorOrNil()
}

// validateServer checks the Server configuration section.
// It ensures the Addr field is not empty and contains a valid host:port or :port format.
//
// Allowed formats:
//   - "host:port" (e.g., "example.com:8080", "127.0.0.1:8080", "[::1]:8080")
//   - ":port"     (e.g., ":8080", listens on all interfaces)
func validateServer(server *Server) error {
	if server.Addr == "" {
		return errors.New("address (Addr) cannot be empty")
	}

	_, port, err := net.SplitHostPort(server.Addr)
	if err != nil {
		return fmt.Errorf("invalid address format '%s': %w", server.Addr, err)
	}
	if port == "" {
		return fmt.Errorf("address '%s' must include a port", server.Addr)
	}
	if _, err := net.LookupPort("tcp", port); err != nil {
		return fmt.Errorf("invalid port '%s' in address '%s': %w", port, server.Addr, err)
	}

	if server.SelfDomain == "" || !strings.Contains(server.SelfDomain, ".") {
		return fmt.Errorf("self domain '%s' must be a dotted domain", server.SelfDomain)
	}
	if server.ShutdownGracefulTimeout.Duration <= 0 {
		return errors.New("shutdown graceful timeout must be positive")
	}
	return nil
}

func validateThrottle(t *Throttle) error {
	var result *multierror.Error
	if t.Window.Duration <= 0 {
		result = multierror.Append(result, errors.New("window must be positive"))
	}
	if t.AggressiveInterval.Duration <= 0 {
		result = multierror.Append(result, errors.New("aggressive interval must be positive"))
	}
	if t.AggressiveInterval.Duration >= t.Window.Duration {
		result = multierror.Append(result, fmt.Errorf("aggressive interval %s must be smaller than window %s",
			t.AggressiveInterval.Duration, t.Window.Duration))
	}
	if t.Lockdown.Duration <= 0 {
		result = multierror.Append(result, errors.New("lockdown must be positive"))
	}
	if t.Capacity <= 0 {
		result = multierror.Append(result, errors.New("capacity must be positive"))
	}
	return result.ErrorOrNil()
}

func validateFetch(f *Fetch) error {
	if f.MaxRedirects <= 0 {
		return errors.New("max redirects must be positive")
	}
	if f.HTMLMaxChunks <= 0 || f.HTMLChunkSize <= 0 {
		return errors.New("html chunk limits must be positive")
	}
	return nil
}

func validateScrapeCache(c *ScrapeCache) error {
	if !c.Activated {
		return nil
	}
	if c.TTL.Duration <= 0 {
		return errors.New("ttl must be positive")
	}
	if c.MaxEntries <= 0 {
		return errors.New("max entries must be positive")
	}
	return nil
}

func validateBlockIp(b *BlockIp) error {
	known := false
	for _, l := range BlockIpLevels {
		if b.Level == l {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown level '%s', want one of %s", b.Level, strings.Join(BlockIpLevels, ", "))
	}
	if b.MaxSharePercent <= 0 || b.MaxSharePercent > 100 {
		return fmt.Errorf("max share percent %d out of range", b.MaxSharePercent)
	}
	if b.Duration.Duration <= 0 {
		return errors.New("block duration must be positive")
	}
	return nil
}

// The endpoint must not look like a domain, or it would shadow one.
// validateMetrics checks the endpoint whenever one is set: the route is
// registered at startup even while deactivated so that a reload can turn
// it on.
func validateMetrics(m *Metrics) error {
	if m.Endpoint == "" {
		if m.Activated {
			return errors.New("endpoint must be set when metrics are activated")
		}
		return nil
	}
	if !strings.HasPrefix(m.Endpoint, "/") || len(m.Endpoint) < 2 {
		return fmt.Errorf("endpoint '%s' must be an absolute path", m.Endpoint)
	}
	if strings.Contains(m.Endpoint, ".") {
		return fmt.Errorf("endpoint '%s' must not contain a dot", m.Endpoint)
	}
	return nil
}

func validateDiscord(d *Discord) error {
	if !d.Activated {
		return nil
	}
	u, err := url.Parse(d.WebhookURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("webhook url must be an absolute http(s) URL")
	}
	if d.APIBurst < 0 {
		return errors.New("api burst must not be negative")
	}
	return nil
}

func validateLog(l *Log) error {
	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("unknown format '%s'", l.Format)
	}
	limits := l.Request.Limits
	if limits.URILength < 64 || limits.UserAgentLength < 32 || limits.RefererLength < 64 ||
		limits.OriginLength < 32 || limits.RemoteIPLength < 15 {
		return errors.New("request log limits below minimum")
	}
	return nil
}

func validateKnownIcon(domain, icon string) error {
	if domain == "" || !strings.Contains(domain, ".") {
		return fmt.Errorf("domain '%s' is not a dotted domain", domain)
	}
	u, err := url.Parse(icon)
	if err != nil {
		return fmt.Errorf("icon for '%s': %w", domain, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("icon for '%s' must be an absolute http(s) URL", domain)
	}
	return nil
}
