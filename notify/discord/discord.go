package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/caasmo/faviconproxy/config"
	"github.com/caasmo/faviconproxy/notify"
	"golang.org/x/time/rate"
)

const (
	// discordMaxMessageLength is the maximum character limit for a Discord message.
	// Messages longer than this will be truncated.
	discordMaxMessageLength = 2000

	discordMessageFormat = "[%s] from *%s*:\n> %s\n"

	defaultRateInterval = 2 * time.Second
	defaultBurst        = 5
	defaultSendTimeout  = 10 * time.Second
)

type payload struct {
	Content string `json:"content"`
}

// Notifier posts notifications to a Discord webhook. Send never blocks on
// the network: messages over the rate limit are dropped and the rest are
// posted from a goroutine.
type Notifier struct {
	webhookURL     string
	sendTimeout    time.Duration
	logger         *slog.Logger
	httpClient     *http.Client
	apiRateLimiter *rate.Limiter
	inflight       sync.WaitGroup
}

var _ notify.Notifier = (*Notifier)(nil)

// New creates a new Notifier.
func New(cfg config.Discord, logger *slog.Logger) (*Notifier, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("discord: WebhookURL is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("discord: logger is required")
	}

	interval := cfg.APIRateInterval.Duration
	if interval <= 0 {
		interval = defaultRateInterval
	}
	burst := cfg.APIBurst
	if burst <= 0 {
		burst = defaultBurst
	}
	timeout := cfg.SendTimeout.Duration
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	return &Notifier{
		webhookURL:     cfg.WebhookURL,
		sendTimeout:    timeout,
		logger:         logger,
		httpClient:     &http.Client{},
		apiRateLimiter: rate.NewLimiter(rate.Every(interval), burst),
	}, nil
}

func (dn *Notifier) formatMessage(n notify.Notification) string {
	mainMessage := fmt.Sprintf(discordMessageFormat, n.Type.String(), n.Source, n.Message)

	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fields strings.Builder
	for _, k := range keys {
		v := n.Fields[k]
		if k == "" || v == nil {
			continue
		}
		valStr := fmt.Sprintf("%v", v)
		if valStr == "" {
			continue
		}
		fmt.Fprintf(&fields, "> %s: `%s`\n", k, valStr)
	}

	content := mainMessage
	if fields.Len() > 0 {
		content += "\n**Fields**:\n" + fields.String()
	}
	if len(content) > discordMaxMessageLength {
		return content[:discordMaxMessageLength-3] + "..."
	}
	return content
}

// Send implements notify.Notifier. Failures of the actual post are logged.
func (dn *Notifier) Send(_ context.Context, n notify.Notification) error {
	if !dn.apiRateLimiter.Allow() {
		dn.logger.Warn("discord: rate limit reached, dropping notification",
			"source", n.Source, "message", n.Message)
		return nil
	}

	body, err := json.Marshal(payload{Content: dn.formatMessage(n)})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	dn.inflight.Add(1)
	go func() {
		defer dn.inflight.Done()
		// Detached from the caller, whose request is usually done by now.
		ctx, cancel := context.WithTimeout(context.Background(), dn.sendTimeout)
		defer cancel()
		dn.post(ctx, n, body)
	}()

	return nil
}

func (dn *Notifier) post(ctx context.Context, n notify.Notification, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dn.webhookURL, bytes.NewReader(body))
	if err != nil {
		dn.logger.Error("discord: failed to create request",
			"source", n.Source, "message", n.Message, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dn.httpClient.Do(req)
	if err != nil {
		dn.logger.Error("discord: failed to send",
			"source", n.Source, "message", n.Message, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		dn.logger.Error("discord: non-2xx status from webhook",
			"status_code", resp.StatusCode, "source", n.Source, "message", n.Message)
		return
	}

	dn.logger.Debug("discord: notification sent", "source", n.Source, "message", n.Message)
}

// Wait blocks until every accepted notification has been posted or failed.
func (dn *Notifier) Wait() {
	dn.inflight.Wait()
}
