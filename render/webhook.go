package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hazyhaar/chattoc/outline"
)

// Webhook POSTs each list as JSON to a URL with retry and exponential
// backoff. Render never blocks: it keeps only the latest list and Run
// delivers it from its own goroutine.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	pending    chan outline.List
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the first retry delay; it doubles per attempt.
// Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookClient replaces the HTTP client.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook targeting url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
		pending:    make(chan outline.List, 1),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Webhook) Init() error { return nil }

// Render queues l for delivery, replacing a list not yet sent.
func (w *Webhook) Render(l outline.List) error {
	select {
	case <-w.pending:
	default:
	}
	select {
	case w.pending <- l:
	default:
		w.logger.Debug("webhook: list dropped")
	}
	return nil
}

// Run delivers queued lists until ctx is done.
func (w *Webhook) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case l := <-w.pending:
			if err := w.Send(ctx, l); err != nil {
				w.logger.Warn("webhook: delivery failed", "count", len(l.Items), "error", err)
			}
		}
	}
}

// Send posts l synchronously.
func (w *Webhook) Send(ctx context.Context, l outline.List) error {
	body, err := json.Marshal(envelope{Type: "outline", Data: l})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("X-Chattoc-Session", l.Session)
	hdr.Set("X-Chattoc-Generation", strconv.FormatUint(l.Generation, 10))

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(w.backoff << (attempt - 1))
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}
		retry, err := w.attempt(ctx, body, hdr)
		if err == nil {
			return nil
		}
		lastErr = err
		w.logger.Warn("webhook: attempt failed", "attempt", attempt+1, "generation", l.Generation, "error", err)
		if !retry {
			return err
		}
	}
	return fmt.Errorf("webhook: retries exhausted: %w", lastErr)
}

// attempt posts once. Client errors other than 408 and 429 are final.
func (w *Webhook) attempt(ctx context.Context, body []byte, hdr http.Header) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("webhook: new request: %w", err)
	}
	req.Header = hdr.Clone()
	resp, err := w.client.Do(req)
	if err != nil {
		return true, err
	}
	resp.Body.Close()
	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return false, nil
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return true, fmt.Errorf("webhook: status %d", code)
	default:
		return false, fmt.Errorf("webhook: status %d", code)
	}
}
