package core

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/caasmo/faviconproxy/config"
	"github.com/caasmo/faviconproxy/fetch"
	"github.com/caasmo/faviconproxy/throttle"
	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"
)

const unreachableHost = "unreachable.example.net"

// upstream serves every outbound request of the fetcher, whatever the host,
// and counts hits per host+path.
type upstream struct {
	mu   sync.Mutex
	hits map[string]int
	mux  map[string]http.Handler
}

func newUpstream() *upstream {
	return &upstream{hits: map[string]int{}, mux: map[string]http.Handler{}}
}

// on registers h for host+path, e.g. "example.com/favicon.ico".
func (u *upstream) on(hostPath string, h http.Handler) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.mux[hostPath] = h
}

func (u *upstream) hitCount(hostPath string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[hostPath]
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		host = r.Host
	}
	key := host + r.URL.Path

	u.mu.Lock()
	u.hits[key]++
	h, ok := u.mux[key]
	u.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	h.ServeHTTP(w, r)
}

// client dials srv for every host except unreachableHost.
func upstreamClient(t *testing.T, srv *httptest.Server) *http.Client {
	t.Helper()
	addr := srv.Listener.Addr().String()
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, target string) (net.Conn, error) {
			if strings.HasPrefix(target, unreachableHost+":") {
				return nil, errors.New("connect: connection refused")
			}
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	t.Cleanup(transport.CloseIdleConnections)
	return &http.Client{Transport: transport}
}

func icon(contentType, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	})
}

func page(body string) http.Handler {
	return icon("text/html; charset=utf-8", body)
}

func redirect(location string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", location)
		w.WriteHeader(http.StatusFound)
	})
}

func status(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

// captureHandler keeps every record it handles.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

// requestLines returns the attributes of every request log line.
func (h *captureHandler) requestLines() []map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var lines []map[string]string
	for _, r := range h.records {
		if r.Message != logMessage {
			continue
		}
		attrs := map[string]string{"time": r.Time.Format(time.RFC3339)}
		r.Attrs(func(a slog.Attr) bool {
			attrs[a.Key] = a.Value.String()
			return true
		})
		lines = append(lines, attrs)
	}
	return lines
}

// mapCache is a synchronous cache.Cache that ignores cost and TTL.
type mapCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *mapCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(key, value string, cost int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]string{}
	}
	c.data[key] = value
	return true
}

func (c *mapCache) SetWithTTL(key, value string, cost int64, ttl time.Duration) bool {
	return c.Set(key, value, cost)
}

type testEnv struct {
	app      *App
	clock    *testclock.Clock
	upstream *upstream
	logs     *captureHandler
	cache    *mapCache
	registry *prometheus.Registry
}

// newTestEnv builds an App whose fetcher reaches the in-process upstream.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Server.SelfDomain = "favicon-proxy.test"
	if mutate != nil {
		mutate(cfg)
	}

	up := newUpstream()
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	env := &testEnv{
		clock:    testclock.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		upstream: up,
		logs:     &captureHandler{},
		cache:    &mapCache{},
		registry: prometheus.NewRegistry(),
	}

	tracker := throttle.New(throttle.Params{
		Window:             cfg.Throttle.Window.Duration,
		AggressiveInterval: cfg.Throttle.AggressiveInterval.Duration,
		Lockdown:           cfg.Throttle.Lockdown.Duration,
		Capacity:           cfg.Throttle.Capacity,
	}, env.clock)
	logger := slog.New(env.logs)
	fetcher := fetch.New(upstreamClient(t, srv), fetch.NewHostDetector(cfg.Server.SelfDomain), logger)

	app, err := NewApp(
		WithConfigProvider(config.NewProvider(cfg)),
		WithLogger(logger),
		WithClock(env.clock),
		WithGatherer(env.registry),
		WithTracker(tracker),
		WithFetcher(fetcher),
		WithBannedReferrers(config.NewHostSet("spam.example.org")),
		WithScrapeCache(env.cache),
	)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	env.app = app
	return env
}

// get runs path through the icon handler from ip.
func (e *testEnv) get(path, ip string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":51000"
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rr := httptest.NewRecorder()
	e.app.IconHandler(rr, req)
	return rr
}
