package prerouter

import (
	"context"
	"net/http"
	"strings"

	"github.com/caasmo/faviconproxy/cache"
	"github.com/caasmo/faviconproxy/core"
	"github.com/caasmo/faviconproxy/notify"
	"github.com/caasmo/faviconproxy/topk"
)

const defaultBlockCost = 1 // Default cost for blocked IP entries

// The primary goal of this middleware is to act as a simple, robust circuit
// breaker to try to prevent server collapse under a flood, not to be a
// nuanced per client limit. That is the throttle behind the guard.
type BlockIp struct {
	app     *core.App
	sketch  *topk.TopKSketch
	blocked cache.Cache[string, struct{}]
}

// sketchLevels defines the parameter presets for different sensitivity levels.
// These presets balance memory usage against detection accuracy.
// - "low":    ~10 KB memory. For low-traffic sites (< 50 RPS). Less accurate.
// - "medium": ~120 KB memory. Balanced profile for most use cases (50-500 RPS).
// - "high":   ~640 KB memory. For high-traffic sites (> 500 RPS) needing max accuracy.
var sketchLevels = map[string]topk.SketchParams{
	"low": {
		K:          2,
		WindowSize: 5,
		Width:      256,
		Depth:      2,
		TickSize:   100,
	},
	"medium": {
		K:          3,
		WindowSize: 10,
		Width:      1024,
		Depth:      3,
		TickSize:   100,
	},
	"high": {
		K:          5,
		WindowSize: 10,
		Width:      4096,
		Depth:      4,
		TickSize:   200,
	},
}

// NewBlockIp creates the circuit breaker. blocked holds the currently
// blocked IPs with the configured block duration as TTL.
func NewBlockIp(app *core.App, blocked cache.Cache[string, struct{}]) *BlockIp {
	cfg := app.Config().BlockIp
	// The level is validated in config.Validate
	params := sketchLevels[cfg.Level]
	params.ActivationRPS = cfg.ActivationRPS
	params.MaxSharePercent = cfg.MaxSharePercent

	return &BlockIp{
		app:     app,
		sketch:  topk.New(params, app.Clock()),
		blocked: blocked,
	}
}

func (b *BlockIp) Execute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := b.app.Config()
		if !cfg.BlockIp.Activated {
			next.ServeHTTP(w, r)
			return
		}

		ip := core.ClientIP(r, cfg.Server.ClientIpProxyHeaders)
		if b.IsBlocked(ip) {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		b.Process(ip)

		next.ServeHTTP(w, r)
	})
}

// IsBlocked checks if a given IP address is currently blocked by looking in the cache.
func (b *BlockIp) IsBlocked(ip string) bool {
	_, found := b.blocked.Get(ip)
	return found
}

// Block adds the given IP to the block list for the configured duration.
func (b *BlockIp) Block(ip string) bool {
	ttl := b.app.Config().BlockIp.Duration.Duration
	if !b.blocked.SetWithTTL(ip, struct{}{}, defaultBlockCost, ttl) {
		b.app.Logger().Error("failed to block IP", "ip", ip)
		return false
	}
	b.app.Logger().Info("IP blocked", "ip", ip, "duration", ttl)
	return true
}

// Process feeds the IP to the sketch and blocks whatever it reports.
//
// Blocking the same IP twice is harmless: the cache keeps one entry per key
// and the later write wins.
func (b *BlockIp) Process(ip string) {
	offenders := b.sketch.ProcessTick(ip)
	if len(offenders) == 0 {
		return
	}
	b.app.Logger().Info("IPs to be blocked", "ips", offenders)
	var blocked []string
	for _, o := range offenders {
		if b.Block(o) {
			blocked = append(blocked, o)
		}
	}
	if len(blocked) == 0 {
		return
	}

	err := b.app.Notifier().Send(context.Background(), notify.Notification{
		Type:    notify.Alarm,
		Source:  "blockip",
		Message: "IPs blocked by the circuit breaker",
		Fields: map[string]any{
			"ips":      strings.Join(blocked, ", "),
			"duration": b.app.Config().BlockIp.Duration.Duration.String(),
		},
	})
	if err != nil {
		b.app.Logger().Error("failed to send block notification", "error", err)
	}
}
