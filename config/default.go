package config

import (
	"log/slog"
	"time"
)

// NewDefaultConfig creates a new Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: Server{
			Addr:                    ":8080",
			SelfDomain:              "favicon-proxy.local",
			ClientIpProxyHeaders:    []string{"CF-Connecting-IP", "X-Forwarded-For"},
			CountryHeader:           "CF-IPCountry",
			ShutdownGracefulTimeout: Duration{Duration: 15 * time.Second},
			ReadTimeout:             Duration{Duration: 5 * time.Second},
			ReadHeaderTimeout:       Duration{Duration: 2 * time.Second},
			WriteTimeout:            Duration{Duration: 0},
			IdleTimeout:             Duration{Duration: 1 * time.Minute},
		},
		Throttle: Throttle{
			Window:             Duration{Duration: 1000 * time.Millisecond},
			AggressiveInterval: Duration{Duration: 100 * time.Millisecond},
			Lockdown:           Duration{Duration: 3600000 * time.Millisecond},
			Capacity:           50,
		},
		Fetch: Fetch{
			Verbose:       false,
			UserAgent:     "Mozilla/5.0 (compatible; faviconproxy/1.0)",
			MaxRedirects:  3,
			HTMLMaxChunks: 1000,
			HTMLChunkSize: 16 * 1024,
		},
		Referrers: Referrers{
			BannedFile: "banned-referrers.txt",
		},
		ScrapeCache: ScrapeCache{
			Activated:  true,
			TTL:        Duration{Duration: 10 * time.Minute},
			MaxEntries: 10000,
		},
		BlockIp: BlockIp{
			Activated:       false,
			Level:           "medium",
			ActivationRPS:   200,
			MaxSharePercent: 35,
			Duration:        Duration{Duration: 3 * time.Minute},
		},
		Maintenance: Maintenance{
			Activated: false,
			Message:   "Down for maintenance",
		},
		Discord: Discord{
			Activated:       false,
			APIRateInterval: Duration{Duration: 2 * time.Second},
			APIBurst:        5,
			SendTimeout:     Duration{Duration: 10 * time.Second},
		},
		Metrics: Metrics{
			Activated: true,
			Endpoint:  "/metrics",
		},
		Log: Log{
			Format: "json",
			Level:  LogLevel{Level: slog.LevelInfo},
			Request: LogRequest{
				Limits: LogRequestLimits{
					URILength:       512, // Minimum: 64
					UserAgentLength: 256, // Minimum: 32
					RefererLength:   512, // Minimum: 64
					OriginLength:    256, // Minimum: 32
					RemoteIPLength:  64,  // Minimum: 15
				},
			},
		},
		KnownIcons: map[string]string{},
	}
}
