// Package service contains adapters for external services.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulsehub/pulse-engagement-hub/internal/domain/notification"
	"github.com/pulsehub/pulse-engagement-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEBHOOK NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// WebhookNotifier delivers user notifications to the company chat webhook.
// It implements notification.Notifier. Delivery errors are classified for
// the retrier: 4xx responses are permanent (the payload will not get
// better), 5xx and transport errors are retryable.
type WebhookNotifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// WebhookNotifierConfig contains settings for the webhook client.
type WebhookNotifierConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(config WebhookNotifierConfig) *WebhookNotifier {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// webhookPayload is the wire format the chat webhook accepts.
type webhookPayload struct {
	UserID string         `json:"user_id"`
	Kind   string         `json:"kind"`
	Data   map[string]any `json:"data,omitempty"`
}

// Send posts the message to the webhook endpoint.
func (n *WebhookNotifier) Send(ctx context.Context, msg *notification.Message) error {
	body, err := json.Marshal(webhookPayload{
		UserID: msg.UserID,
		Kind:   string(msg.Kind),
		Data:   msg.Payload,
	})
	if err != nil {
		return retry.Permanent(fmt.Errorf("notifier: marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("notifier: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("notifier: send: %w", err))
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.Retryable(fmt.Errorf("notifier: webhook returned %d", resp.StatusCode))
	default:
		return retry.Permanent(fmt.Errorf("notifier: webhook rejected message with %d", resp.StatusCode))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LOG NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// LogNotifier writes notifications to the log instead of delivering them.
// Used in development and tests when no webhook is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a new log-only notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the message and reports success.
func (n *LogNotifier) Send(_ context.Context, msg *notification.Message) error {
	n.logger.Info("notification (log only)",
		"user_id", msg.UserID,
		"kind", string(msg.Kind),
		"payload", msg.Payload,
	)
	return nil
}
