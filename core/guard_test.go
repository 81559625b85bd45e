package core

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/caasmo/faviconproxy/config"
	"github.com/caasmo/faviconproxy/failure"
	"github.com/google/go-cmp/cmp"
)

func TestParseDomain(t *testing.T) {
	testCases := []struct {
		path   string
		want   string
		wantOk bool
	}{
		{"/example.com", "example.com", true},
		{"/Sub.Example.COM", "sub.example.com", true},
		{"/xn--bcher-kva.example", "xn--bcher-kva.example", true},
		{"/", "", false},
		{"/localhost", "", false},
		{"/example", "", false},
		{"/example.com/", "", false},
		{"/example.com/favicon.ico", "", false},
		{"/example.com:8080", "", false},
		{"/example.com?", "", false},
		{"/example.com?size=16", "", false},
		{"/example..com", "", false},
		{"/..", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			got, ok := ParseDomain(tc.path)
			if ok != tc.wantOk || got != tc.want {
				t.Errorf("ParseDomain(%q) = (%q, %v), want (%q, %v)", tc.path, got, ok, tc.want, tc.wantOk)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	headers := []string{"CF-Connecting-IP", "X-Forwarded-For"}
	testCases := []struct {
		name       string
		remoteAddr string
		header     http.Header
		want       string
	}{
		{"IPv4 with port", "192.0.2.1:12345", nil, "192.0.2.1"},
		{"IPv6 with port", "[2001:db8::1]:12345", nil, "2001:db8::1"},
		{"No port", "192.0.2.1", nil, "192.0.2.1"},
		{"Forwarded list", "10.0.0.1:80", http.Header{"X-Forwarded-For": {"203.0.113.5, 10.0.0.2"}}, "203.0.113.5"},
		{"First header wins", "10.0.0.1:80", http.Header{
			"X-Forwarded-For":  {"203.0.113.5"},
			"Cf-Connecting-Ip": {"198.51.100.1"},
		}, "198.51.100.1"},
		{"Empty header ignored", "10.0.0.1:80", http.Header{"Cf-Connecting-Ip": {" "}}, "10.0.0.1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/example.com", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, vs := range tc.header {
				req.Header[k] = vs
			}
			if got := ClientIP(req, headers); got != tc.want {
				t.Errorf("ClientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGuard_Check(t *testing.T) {
	testCases := []struct {
		name     string
		path     string
		referer  string
		wantKind failure.Kind
	}{
		{"valid", "/example.com", "", failure.KindUnknown},
		{"usage", "/nodot", "", failure.KindUsage},
		{"self", "/favicon-proxy.test", "", failure.KindSelfReference},
		{"self subdomain", "/www.favicon-proxy.test", "", failure.KindSelfReference},
		{"banned referrer", "/example.com", "https://SPAM.example.org/page", failure.KindBannedReferrer},
		{"other referrer", "/example.com", "https://blog.example.org/", failure.KindUnknown},
		{"usage before self", "/favicon-proxy.test/x", "", failure.KindUsage},
		{"banned before self", "/favicon-proxy.test", "https://spam.example.org/", failure.KindBannedReferrer},
		{"banned before usage", "/nodot", "https://spam.example.org/", failure.KindBannedReferrer},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req.RemoteAddr = "192.0.2.10:40000"
			if tc.referer != "" {
				req.Header.Set("Referer", tc.referer)
			}

			v, err := env.app.Guard().Check(req)
			if got := failure.KindOf(err); got != tc.wantKind {
				t.Fatalf("Check() kind = %v, want %v (err %v)", got, tc.wantKind, err)
			}
			if err == nil && v.Domain != strings.TrimPrefix(tc.path, "/") {
				t.Errorf("Domain = %q", v.Domain)
			}
			if v.RequestID == "" {
				t.Error("expected a request id")
			}
		})
	}
}

// Malformed and self referencing requests use the client's throttle slot,
// banned referrers do not.
func TestGuard_ThrottleRunsBeforeDomainChecks(t *testing.T) {
	check := func(env *testEnv, path, referer, ip string) error {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = ip + ":1"
		if referer != "" {
			req.Header.Set("Referer", referer)
		}
		_, err := env.app.Guard().Check(req)
		return err
	}

	for _, path := range []string{"/nodot", "/favicon-proxy.test"} {
		t.Run(path, func(t *testing.T) {
			env := newTestEnv(t, nil)
			ip := "192.0.2.20"

			if err := check(env, path, "", ip); failure.Is(err, failure.KindThrottled) || err == nil {
				t.Fatalf("first request: got %v, want a domain error", err)
			}
			env.clock.Advance(500 * time.Millisecond)
			if err := check(env, "/example.com", "", ip); !failure.Is(err, failure.KindThrottled) {
				t.Fatalf("valid request inside the window: got %v, want throttled", err)
			}
		})
	}

	t.Run("banned referrer", func(t *testing.T) {
		env := newTestEnv(t, nil)
		ip := "192.0.2.21"

		if err := check(env, "/example.com", "http://spam.example.org/", ip); !failure.Is(err, failure.KindBannedReferrer) {
			t.Fatalf("got %v, want banned referrer", err)
		}
		if err := check(env, "/example.com", "", ip); err != nil {
			t.Fatalf("banned request consumed the throttle slot: %v", err)
		}
	})
}

func TestGuard_LockdownFromMalformedRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	ip := "192.0.2.22"

	var kinds []failure.Kind
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/nodot", nil)
		req.RemoteAddr = ip + ":1"
		_, err := env.app.Guard().Check(req)
		kinds = append(kinds, failure.KindOf(err))
		env.clock.Advance(10 * time.Millisecond)
	}
	if kinds[0] != failure.KindUsage {
		t.Errorf("first request kind = %v, want usage", kinds[0])
	}
	for i, k := range kinds[1:] {
		if k != failure.KindThrottled {
			t.Fatalf("request %d kind = %v, want throttled", i+1, k)
		}
	}

	env.clock.Advance(5 * time.Second)
	req := httptest.NewRequest(http.MethodGet, "/example.com", nil)
	req.RemoteAddr = ip + ":1"
	if _, err := env.app.Guard().Check(req); !failure.Is(err, failure.KindThrottled) {
		t.Errorf("valid request during lockdown: got %v, want throttled", err)
	}
}

func TestGuard_LogLine(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Log.Request.Limits.UserAgentLength = 32
	})

	req := httptest.NewRequest(http.MethodGet, "/example.com", nil)
	req.RemoteAddr = "192.0.2.30:5555"
	req.Header.Set("Origin", "https://app.example.net")
	req.Header.Set("Referer", "https://app.example.net/inbox")
	req.Header.Set("User-Agent", strings.Repeat("u", 40))
	req.Header.Set("CF-IPCountry", "NZ")

	v, err := env.app.Guard().Check(req)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	// same client again inside the window
	env.clock.Advance(500 * time.Millisecond)
	req2 := httptest.NewRequest(http.MethodGet, "/example.com", nil)
	req2.RemoteAddr = "192.0.2.30:5556"
	if _, err := env.app.Guard().Check(req2); !failure.Is(err, failure.KindThrottled) {
		t.Fatalf("expected throttled, got %v", err)
	}

	lines := env.logs.requestLines()
	if len(lines) != 2 {
		t.Fatalf("expected one log line per request, got %d", len(lines))
	}

	want := map[string]string{
		"time":       "2024-05-01T12:00:00Z",
		"type":       "request",
		"method":     "GET",
		"path":       "/example.com",
		"origin":     "https://app.example.net",
		"referer":    "https://app.example.net/inbox",
		"user_agent": strings.Repeat("u", 32) + "...",
		"ip":         "192.0.2.30",
		"country":    "NZ",
		"reason":     "-",
		"request_id": v.RequestID,
	}
	if diff := cmp.Diff(want, lines[0]); diff != "" {
		t.Errorf("log line mismatch (-want +got):\n%s", diff)
	}

	if got := lines[1]["reason"]; got != failure.MsgThrottled {
		t.Errorf("reason = %q, want %q", got, failure.MsgThrottled)
	}
	if got := lines[1]["time"]; got != "2024-05-01T12:00:00Z" {
		t.Errorf("time = %q", got)
	}
}

func TestGuard_SetBanned(t *testing.T) {
	env := newTestEnv(t, nil)
	env.app.SetBannedReferrers(config.NewHostSet("new.example.org"))

	check := func(referer, ip string) error {
		req := httptest.NewRequest(http.MethodGet, "/example.com", nil)
		req.RemoteAddr = ip + ":1"
		req.Header.Set("Referer", referer)
		_, err := env.app.Guard().Check(req)
		return err
	}

	if err := check("http://new.example.org/", "192.0.2.40"); !failure.Is(err, failure.KindBannedReferrer) {
		t.Errorf("expected banned referrer, got %v", err)
	}
	if err := check("http://spam.example.org/", "192.0.2.41"); err != nil {
		t.Errorf("old set must be replaced, got %v", err)
	}

	env.app.SetBannedReferrers(nil)
	if err := check("http://new.example.org/", "192.0.2.42"); err != nil {
		t.Errorf("nil set bans nothing, got %v", err)
	}
}
