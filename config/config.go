package config

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

type Config struct {
	// Source is the TOML file the config was read from, empty for defaults.
	Source string `toml:"-"`

	Server      Server
	Throttle    Throttle
	Fetch       Fetch
	Referrers   Referrers
	ScrapeCache ScrapeCache
	BlockIp     BlockIp
	Metrics     Metrics
	Maintenance Maintenance
	Discord     Discord
	Log         Log

	// KnownIcons maps a lowercase domain to the icon URL served for it
	// instead of resolving the domain's own favicon.
	KnownIcons map[string]string
}

type Server struct {
	Addr string
	// SelfDomain is the domain this service runs under. Requests for it, and
	// fetches to hosts containing it, are refused.
	SelfDomain string
	// ClientIpProxyHeaders are trusted headers carrying the client IP, in
	// order of preference. The first element of a comma list is used.
	ClientIpProxyHeaders []string
	// CountryHeader is only logged.
	CountryHeader string

	ShutdownGracefulTimeout Duration
	ReadTimeout             Duration
	ReadHeaderTimeout       Duration
	// WriteTimeout bounds streaming an icon to the client. Zero disables it.
	WriteTimeout Duration
	IdleTimeout  Duration
}

type Throttle struct {
	Window Duration
	// AggressiveInterval must stay below Window.
	AggressiveInterval Duration
	Lockdown           Duration
	Capacity           int
}

type Fetch struct {
	// Verbose logs every outbound hop.
	Verbose       bool
	UserAgent     string
	MaxRedirects  int
	HTMLMaxChunks int
	HTMLChunkSize int
}

type Referrers struct {
	// BannedFile is a newline separated list of referrer hosts. A missing
	// file means nothing is banned.
	BannedFile string
}

// ScrapeCache remembers the icon URL scraped from a domain's page.
type ScrapeCache struct {
	Activated bool
	TTL       Duration
	// MaxEntries bounds the number of cached domains.
	MaxEntries int64
}

// BlockIp is the coarse heavy hitter circuit breaker in front of the router.
type BlockIp struct {
	Activated bool
	// Level is one of "low", "medium", "high".
	Level           string
	ActivationRPS   int
	MaxSharePercent int
	Duration        Duration
}

type Metrics struct {
	Activated bool
	Endpoint  string
}

// Maintenance answers every request with 503 while activated. It is
// meant to be switched with a reload.
type Maintenance struct {
	Activated bool
	Message   string
}

// Discord posts alarms to a webhook, currently when the circuit breaker
// blocks IPs.
type Discord struct {
	Activated  bool
	WebhookURL string
	// APIRateInterval spaces messages once APIBurst is used up. Messages
	// over the limit are dropped.
	APIRateInterval Duration
	APIBurst        int
	SendTimeout     Duration
}

type Log struct {
	// Format is "json" or "text".
	Format  string
	Level   LogLevel
	Request LogRequest
}

type LogRequest struct {
	Limits LogRequestLimits
}

// LogRequestLimits cut client supplied header values before logging.
type LogRequestLimits struct {
	URILength       int
	UserAgentLength int
	RefererLength   int
	OriginLength    int
	RemoteIPLength  int
}

// Duration is a time.Duration that (un)marshals as "10s" style text.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		return fmt.Errorf("empty duration")
	}
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type LogLevel struct {
	slog.Level
}

func (l *LogLevel) UnmarshalText(text []byte) error {
	return l.Level.UnmarshalText(text)
}

func (l LogLevel) MarshalText() ([]byte, error) {
	return l.Level.MarshalText()
}

// Provider hands out the current configuration to concurrent readers.
type Provider struct {
	value atomic.Pointer[Config]
}

func NewProvider(cfg *Config) *Provider {
	if cfg == nil {
		panic("config provider needs a non nil config")
	}
	p := &Provider{}
	p.value.Store(cfg)
	return p
}

func (p *Provider) Get() *Config {
	return p.value.Load()
}

func (p *Provider) Update(cfg *Config) {
	p.value.Store(cfg)
}
