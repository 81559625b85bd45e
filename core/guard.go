package core

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/caasmo/faviconproxy/config"
	"github.com/caasmo/faviconproxy/failure"
	"github.com/caasmo/faviconproxy/throttle"
	"github.com/google/uuid"
	"github.com/juju/clock"
)

const logMessage = "request"

// Cached common log attributes
var (
	logType    = slog.String("type", "request")
	reasonNone = slog.String("reason", "-")
)

// Verdict is what the guard learned about an accepted request.
type Verdict struct {
	Domain    string
	IP        string
	RequestID string
}

// Guard classifies incoming icon requests before anything is fetched.
// Checks run in order: banned referrer, throttle, usage, self reference.
// Every request that is not refused for its referrer counts against the
// client's throttle slot, malformed ones included.
type Guard struct {
	configProvider *config.Provider
	tracker        *throttle.Tracker
	banned         atomic.Pointer[config.HostSet]
	logger         *slog.Logger
	clock          clock.Clock
}

func NewGuard(provider *config.Provider, tracker *throttle.Tracker, logger *slog.Logger, clk clock.Clock) *Guard {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Guard{
		configProvider: provider,
		tracker:        tracker,
		logger:         logger,
		clock:          clk,
	}
}

// SetBanned replaces the banned referrer set. A nil set bans nothing.
func (g *Guard) SetBanned(set *config.HostSet) {
	g.banned.Store(set)
}

// Check validates r and writes exactly one log line for it. The returned
// error is a *failure.Error when the request must be refused.
func (g *Guard) Check(r *http.Request) (Verdict, error) {
	cfg := g.configProvider.Get()
	v := newVerdict(r, cfg)

	domain, err := g.classify(r, cfg, v.IP)

	g.log(r, cfg, v, err)
	if err != nil {
		return v, err
	}
	v.Domain = domain
	return v, nil
}

// Log writes the request line for r without checking it. Fixed endpoints
// use it: they are neither throttled nor refused.
func (g *Guard) Log(r *http.Request) Verdict {
	cfg := g.configProvider.Get()
	v := newVerdict(r, cfg)
	g.log(r, cfg, v, nil)
	return v
}

func newVerdict(r *http.Request, cfg *config.Config) Verdict {
	return Verdict{
		IP:        ClientIP(r, cfg.Server.ClientIpProxyHeaders),
		RequestID: uuid.NewString(),
	}
}

func (g *Guard) classify(r *http.Request, cfg *config.Config, ip string) (string, error) {
	if host := refererHost(r.Referer()); host != "" && g.banned.Load().Contains(host) {
		return "", failure.BannedReferrer()
	}

	if !g.tracker.Allow(ip) {
		return "", failure.Throttled()
	}

	domain, ok := ParseDomain(requestTarget(r))
	if !ok {
		return "", failure.Usage()
	}

	self := cfg.Server.SelfDomain
	if self != "" && strings.Contains(domain, self) {
		return "", failure.SelfReference()
	}

	return domain, nil
}

// requestTarget is the decoded path with the query put back, so that a '?'
// in the request line is seen by ParseDomain.
func requestTarget(r *http.Request) string {
	if r.URL.RawQuery != "" || r.URL.ForceQuery {
		return r.URL.Path + "?" + r.URL.RawQuery
	}
	return r.URL.Path
}

// ParseDomain extracts the lowercase domain from a request path. The domain
// must contain a dot and none of '/', ':', '?' or "..".
func ParseDomain(path string) (string, bool) {
	domain := strings.ToLower(strings.TrimPrefix(path, "/"))
	if !strings.Contains(domain, ".") {
		return "", false
	}
	if strings.ContainsAny(domain, "/:?") || strings.Contains(domain, "..") {
		return "", false
	}
	return domain, true
}

func refererHost(referer string) string {
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// ClientIP returns the first element of the first trusted proxy header that
// is present, or the peer address of the connection.
func ClientIP(r *http.Request, proxyHeaders []string) string {
	for _, h := range proxyHeaders {
		if v := r.Header.Get(h); v != "" {
			first, _, _ := strings.Cut(v, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return ip
}

// cutStr limits string length by adding ellipsis if needed
func cutStr(str string, max int) string {
	if len(str) > max {
		return str[:max] + "..."
	}
	return str
}

// log emits the request line with the guard clock as record time, in UTC.
func (g *Guard) log(r *http.Request, cfg *config.Config, v Verdict, err error) {
	limits := cfg.Log.Request.Limits

	reason := reasonNone
	if err != nil {
		reason = slog.String("reason", err.Error())
	}

	rec := slog.NewRecord(g.clock.Now().UTC(), slog.LevelInfo, logMessage, 0)
	rec.AddAttrs(
		logType,
		slog.String("method", strings.ToUpper(r.Method)),
		slog.String("path", cutStr(r.URL.Path, limits.URILength)),
		slog.String("origin", cutStr(r.Header.Get("Origin"), limits.OriginLength)),
		slog.String("referer", cutStr(r.Referer(), limits.RefererLength)),
		slog.String("user_agent", cutStr(r.UserAgent(), limits.UserAgentLength)),
		slog.String("ip", cutStr(v.IP, limits.RemoteIPLength)),
		slog.String("country", cutStr(r.Header.Get(cfg.Server.CountryHeader), 8)),
		reason,
		slog.String("request_id", v.RequestID),
	)

	ctx := r.Context()
	h := g.logger.Handler()
	if h.Enabled(ctx, rec.Level) {
		_ = h.Handle(ctx, rec)
	}
}
