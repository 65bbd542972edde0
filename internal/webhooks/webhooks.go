// Package webhooks delivers alerts to an operator-configured HTTP endpoint.
//
// Each delivery is a JSON POST of the publisher envelope, signed with
// HMAC-SHA256 over the body when a secret is configured:
//
//	X-WalletGuard-Event:     alert
//	X-WalletGuard-Timestamp: unix seconds
//	X-WalletGuard-Signature: hex(hmac_sha256(secret, body))
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mbd888/walletguard/internal/circuitbreaker"
	"github.com/mbd888/walletguard/internal/metrics"
	"github.com/mbd888/walletguard/internal/publisher"
	"github.com/mbd888/walletguard/internal/retry"
	"github.com/mbd888/walletguard/internal/security"
)

// Delivery headers.
const (
	HeaderEvent     = "X-WalletGuard-Event"
	HeaderTimestamp = "X-WalletGuard-Timestamp"
	HeaderSignature = "X-WalletGuard-Signature"
)

const (
	defaultAttempts  = 4
	defaultBaseDelay = 500 * time.Millisecond
	deliveryTimeout  = 30 * time.Second
)

// ErrCircuitOpen is returned when deliveries are paused after repeated failures.
var ErrCircuitOpen = errors.New("webhook circuit open")

// Config configures a Notifier.
type Config struct {
	URL    string
	Secret string
	// Events lists the publisher event types to forward. Empty means alerts only.
	Events []string
}

// Notifier forwards selected events to the webhook URL. It implements
// publisher.Sink; each event is delivered on its own goroutine.
type Notifier struct {
	url       string
	secret    string
	events    map[string]bool
	client    *http.Client
	breaker   *circuitbreaker.Breaker
	logger    *slog.Logger
	attempts  int
	baseDelay time.Duration

	urlValidator func(string) error

	wg sync.WaitGroup
}

// New creates a notifier. The URL is checked against SSRF rules up front.
func New(cfg Config, breaker *circuitbreaker.Breaker, logger *slog.Logger) (*Notifier, error) {
	if err := security.ValidateEndpointURL(cfg.URL); err != nil {
		return nil, fmt.Errorf("webhooks: %w", err)
	}
	return newNotifier(cfg, breaker, logger), nil
}

func newNotifier(cfg Config, breaker *circuitbreaker.Breaker, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if breaker == nil {
		breaker = circuitbreaker.New(5, time.Minute)
	}
	events := map[string]bool{}
	for _, e := range cfg.Events {
		events[e] = true
	}
	if len(events) == 0 {
		events[publisher.EventAlert] = true
	}
	return &Notifier{
		url:          cfg.URL,
		secret:       cfg.Secret,
		events:       events,
		client:       &http.Client{Timeout: 10 * time.Second},
		breaker:      breaker,
		logger:       logger,
		attempts:     defaultAttempts,
		baseDelay:    defaultBaseDelay,
		urlValidator: security.ValidateEndpointURL,
	}
}

// BreakerKey is the circuit breaker key used for this endpoint.
func (n *Notifier) BreakerKey() string { return "webhook:" + n.url }

// Publish implements publisher.Sink.
func (n *Notifier) Publish(_ context.Context, ev publisher.Event) {
	if n == nil || !n.events[ev.Type] {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		if err := n.Deliver(ctx, ev); err != nil {
			n.logger.Warn("webhook delivery failed", "event", ev.Type, "key", ev.Key, "error", err)
		}
	}()
}

// Deliver posts ev, retrying transient failures with backoff.
func (n *Notifier) Deliver(ctx context.Context, ev publisher.Event) error {
	key := n.BreakerKey()
	if !n.breaker.Allow(key) {
		metrics.WebhookDeliveriesTotal.WithLabelValues("skipped").Inc()
		return ErrCircuitOpen
	}

	body, err := publisher.Encode(ev)
	if err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("webhooks: encode: %w", err)
	}

	err = retry.DoNotify(ctx, n.attempts, n.baseDelay, func() error {
		return n.send(ctx, ev.Type, body)
	}, func(attempt int, err error, next time.Duration) {
		n.logger.Debug("webhook retry", "attempt", attempt, "next", next, "error", err)
	})
	if err != nil {
		n.breaker.RecordFailure(key)
		metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return err
	}
	n.breaker.RecordSuccess(key)
	metrics.WebhookDeliveriesTotal.WithLabelValues("ok").Inc()
	return nil
}

func (n *Notifier) send(ctx context.Context, eventType string, body []byte) error {
	if err := n.urlValidator(n.url); err != nil {
		return retry.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	if n.secret != "" {
		req.Header.Set(HeaderSignature, Sign(body, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	default:
		return retry.Permanent(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}
}

// Close waits for in-flight deliveries.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature is the valid signature of payload.
func Verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

var _ publisher.Sink = (*Notifier)(nil)
