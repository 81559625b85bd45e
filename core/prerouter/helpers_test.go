package prerouter

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/caasmo/faviconproxy/config"
	"github.com/caasmo/faviconproxy/core"
	"github.com/caasmo/faviconproxy/fetch"
	"github.com/caasmo/faviconproxy/notify"
	"github.com/caasmo/faviconproxy/throttle"
	"github.com/juju/clock/testclock"
)

// newTestApp builds an App around the default config changed by mutate.
func newTestApp(t *testing.T, clk *testclock.Clock, mutate func(*config.Config), opts ...core.Option) *core.App {
	t.Helper()
	cfg := config.NewDefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	if clk == nil {
		clk = testclock.NewClock(time.Unix(1700000000, 0))
	}

	opts = append([]core.Option{
		core.WithConfigProvider(config.NewProvider(cfg)),
		core.WithLogger(slog.New(slog.DiscardHandler)),
		core.WithClock(clk),
		core.WithTracker(throttle.New(throttle.Params{}, clk)),
		core.WithFetcher(fetch.New(nil, fetch.NewHostDetector(cfg.Server.SelfDomain), nil)),
	}, opts...)
	app, err := core.NewApp(opts...)
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	return app
}

// mapCache is a synchronous cache.Cache that ignores cost and TTL.
type mapCache[V any] struct {
	mu   sync.Mutex
	data map[string]V
	ttls map[string]time.Duration
}

func newMapCache[V any]() *mapCache[V] {
	return &mapCache[V]{data: map[string]V{}, ttls: map[string]time.Duration{}}
}

func (c *mapCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache[V]) Set(key string, value V, cost int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return true
}

func (c *mapCache[V]) SetWithTTL(key string, value V, cost int64, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return true
}

// recordingNotifier keeps every notification sent.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *recordingNotifier) Send(_ context.Context, notification notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}
