package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wisbric/chatowl/pkg/hostconfig"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body, keyed by
// the user's webhook secret.
const SignatureHeader = "X-Chatowl-Signature"

const deliveryTimeout = 10 * time.Second

// Notifier posts calendar events to the webhook endpoints a user configured.
type Notifier struct {
	cfg        hostconfig.Store
	httpClient *http.Client
	logger     *slog.Logger
	deliveries *prometheus.CounterVec
}

// NewNotifier creates a Notifier. deliveries may be nil to disable counting.
func NewNotifier(cfg hostconfig.Store, logger *slog.Logger, deliveries *prometheus.CounterVec) *Notifier {
	return &Notifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: deliveryTimeout},
		logger:     logger,
		deliveries: deliveries,
	}
}

// Notify delivers one calendar event. Users who have not enabled webhooks, or
// have no URL configured for the event's change kind, are skipped without
// error. Delivery is at-most-once: a failed POST is logged and counted, not
// retried.
func (n *Notifier) Notify(ctx context.Context, event CalendarEvent) error {
	if err := event.Validate(); err != nil {
		n.count("invalid")
		return err
	}

	enabled, err := n.cfg.GetUserValue(ctx, event.UserID, hostconfig.KeyWebhooksEnabled)
	if err != nil {
		return fmt.Errorf("reading webhook settings: %w", err)
	}
	if enabled != "1" {
		n.count("skipped")
		return nil
	}

	urlKey := hostconfig.KeyCalendarCreatedWebhook
	if event.Change == ChangeUpdated {
		urlKey = hostconfig.KeyCalendarUpdatedWebhook
	}
	target, err := n.cfg.GetUserValue(ctx, event.UserID, urlKey)
	if err != nil {
		return fmt.Errorf("reading webhook URL: %w", err)
	}
	if target == "" {
		n.count("skipped")
		return nil
	}

	secret, err := n.cfg.GetUserValue(ctx, event.UserID, hostconfig.KeyWebhookSecret)
	if err != nil {
		return fmt.Errorf("reading webhook secret: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding calendar event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		n.count("error")
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.count("error")
		n.logger.Warn("webhook delivery failed", "user_id", event.UserID, "change", event.Change, "error", err)
		return fmt.Errorf("delivering webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.count("error")
		n.logger.Warn("webhook endpoint rejected delivery",
			"user_id", event.UserID, "change", event.Change, "status", resp.StatusCode)
		return fmt.Errorf("webhook endpoint answered %d", resp.StatusCode)
	}

	n.count("delivered")
	return nil
}

// Sign computes the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (n *Notifier) count(result string) {
	if n.deliveries != nil {
		n.deliveries.WithLabelValues(result).Inc()
	}
}
