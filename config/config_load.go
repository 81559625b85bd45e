package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables read by Load. They override the file.
const (
	EnvPort               = "PORT"
	EnvVerbose            = "VERBOSE"
	EnvThrottleWindowMs   = "THROTTLE_WINDOW_MS"
	EnvLockdownThreshold  = "LOCKDOWN_THRESHOLD_MS"
	EnvLockdownDurationMs = "LOCKDOWN_DURATION_MS"
	EnvBannedReferrers    = "BANNED_REFERRERS_FILE"
	EnvSelfDomain         = "SELF_DOMAIN"
)

// Load builds the configuration from defaults, the optional TOML file at
// path and the environment as seen through getenv, then validates it.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: failed to decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
		cfg.Source = path
	}

	if getenv != nil {
		if err := applyEnv(cfg, getenv); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	normalize(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if port := strings.TrimSpace(getenv(EnvPort)); port != "" {
		cfg.Server.Addr = ":" + port
	}

	if v := strings.TrimSpace(getenv(EnvVerbose)); v != "" {
		verbose, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvVerbose, err)
		}
		cfg.Fetch.Verbose = verbose
	}

	millis := []struct {
		name string
		dst  *Duration
	}{
		{EnvThrottleWindowMs, &cfg.Throttle.Window},
		{EnvLockdownThreshold, &cfg.Throttle.AggressiveInterval},
		{EnvLockdownDurationMs, &cfg.Throttle.Lockdown},
	}
	for _, m := range millis {
		v := strings.TrimSpace(getenv(m.name))
		if v == "" {
			continue
		}
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid milliseconds %q", m.name, v)
		}
		m.dst.Duration = time.Duration(ms) * time.Millisecond
	}

	if v := strings.TrimSpace(getenv(EnvBannedReferrers)); v != "" {
		cfg.Referrers.BannedFile = v
	}
	if v := strings.TrimSpace(getenv(EnvSelfDomain)); v != "" {
		cfg.Server.SelfDomain = v
	}
	return nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

// normalize lowercases the domains used for comparisons.
func normalize(cfg *Config) {
	cfg.Server.SelfDomain = strings.ToLower(strings.TrimSpace(cfg.Server.SelfDomain))

	icons := make(map[string]string, len(cfg.KnownIcons))
	for domain, icon := range cfg.KnownIcons {
		icons[strings.ToLower(strings.TrimSpace(domain))] = strings.TrimSpace(icon)
	}
	cfg.KnownIcons = icons
}
