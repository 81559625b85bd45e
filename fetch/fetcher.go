package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caasmo/faviconproxy/failure"
)

const (
	DefaultMaxRedirects = 3
	DefaultUserAgent    = "Mozilla/5.0 (compatible; faviconproxy/1.0)"

	// cap on what is read from bodies we throw away
	drainLimit = 64 << 10
)

// Attempt is the state of one fetch while it walks a redirect chain.
type Attempt struct {
	URL   string
	Depth int
	// FirstHop applies the stricter content type policy on the final 200.
	FirstHop bool
}

// Outcome is a successful fetch. Body is the live upstream body and must be
// closed by the caller.
type Outcome struct {
	URL         string
	Status      int
	ContentType string
	Body        io.ReadCloser
}

func (o *Outcome) Close() error {
	if o == nil || o.Body == nil {
		return nil
	}
	return o.Body.Close()
}

// Fetcher performs single-attempt GET requests, following redirects itself
// so that every hop goes through the scheme and private network checks.
type Fetcher struct {
	client       *http.Client
	detector     PrivateNetworkDetector
	logger       *slog.Logger
	userAgent    string
	maxRedirects int
	verbose      bool
}

type Option func(*Fetcher)

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

func WithMaxRedirects(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxRedirects = n
		}
	}
}

// WithVerbose logs every hop at info level.
func WithVerbose(v bool) Option {
	return func(f *Fetcher) {
		f.verbose = v
	}
}

// New creates a Fetcher. The client is copied and its redirect policy
// replaced; a nil client means NewHTTPClient().
func New(client *http.Client, detector PrivateNetworkDetector, logger *slog.Logger, opts ...Option) *Fetcher {
	if client == nil {
		client = NewHTTPClient()
	}
	base := *client
	base.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	f := &Fetcher{
		client:       &base,
		detector:     detector,
		logger:       logger,
		userAgent:    DefaultUserAgent,
		maxRedirects: DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewHTTPClient returns a client with dial and handshake timeouts. There is
// no overall timeout: the body is streamed to the client for as long as the
// upstream sends it. Every connection goes through DialControl, so no proxy
// is used.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
			Control:   DialControl,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}

// Fetch GETs rawURL, following up to the configured number of redirects.
// depth is the number of redirects already followed by the caller.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, depth int, firstHop bool) (*Outcome, error) {
	attempt := Attempt{URL: rawURL, Depth: depth, FirstHop: firstHop}

	for {
		resp, err := f.hop(ctx, attempt)
		if err != nil {
			return nil, err
		}

		contentType := resp.Header.Get("Content-Type")
		location := resp.Header.Get("Location")
		if f.verbose {
			f.logger.Info("fetch hop",
				"url", attempt.URL,
				"depth", attempt.Depth,
				"status", resp.StatusCode,
				"content_type", contentType,
				"location", location)
		}

		switch {
		case isRedirect(resp.StatusCode) && location != "":
			drain(resp.Body)
			next, err := parseLocation(location)
			if err != nil {
				return nil, failure.Wrap(failure.KindBadRedirect, failure.MsgBadRedirect, err)
			}
			if attempt.Depth >= f.maxRedirects {
				return nil, failure.New(failure.KindTooManyRedirects, failure.MsgTooManyRedirects)
			}
			attempt.URL = next
			attempt.Depth++

		case resp.StatusCode == http.StatusOK:
			if attempt.FirstHop && !isIconContentType(contentType) {
				drain(resp.Body)
				return nil, failure.BadContentType(contentType)
			}
			return &Outcome{
				URL:         attempt.URL,
				Status:      resp.StatusCode,
				ContentType: contentType,
				Body:        resp.Body,
			}, nil

		default:
			drain(resp.Body)
			return nil, failure.UpstreamStatus(resp.StatusCode)
		}
	}
}

func (f *Fetcher) hop(ctx context.Context, attempt Attempt) (*http.Response, error) {
	u, err := url.Parse(attempt.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, failure.Wrap(failure.KindInvalidProtocol, failure.MsgInvalidProtocol, err)
	}

	if f.detector != nil && f.detector.IsPrivate(u.Hostname()) {
		return nil, failure.New(failure.KindSSRFBlocked, failure.MsgSSRFBlocked)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, failure.Network(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrPrivateAddress) {
			return nil, failure.Wrap(failure.KindSSRFBlocked, failure.MsgSSRFBlocked, err)
		}
		return nil, failure.Network(unwrapURLError(err))
	}
	return resp, nil
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

// parseLocation accepts only absolute http(s)-looking URLs with a host. The
// scheme itself is checked by the next hop.
func parseLocation(location string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return "", err
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("location %q is not an absolute URL", location)
	}
	return u.String(), nil
}

func isIconContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "image/") || ct == "application/octet-stream"
}

// unwrapURLError strips the "Get \"url\":" prefix net/http adds so the
// client sees the transport message only.
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, drainLimit))
	_ = body.Close()
}
