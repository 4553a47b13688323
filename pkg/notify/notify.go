package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/telemetry/tracing"

	"github.com/google/uuid"
)

// Alert is a budget threshold crossing.
type Alert struct {
	// ID identifies the alert. Deliveries carry it as an idempotency key.
	ID string `json:"id"`

	Service string `json:"service"`
	Month   string `json:"month"`

	// Level is "warning" or "critical".
	Level string `json:"level"`

	// Threshold is the crossed threshold in percent (70 or 90).
	Threshold int `json:"threshold"`

	Ratio    float64 `json:"ratio"`
	Amount   float64 `json:"amount"`
	Limit    float64 `json:"limit"`
	Currency string  `json:"currency"`

	// Environment is the deployment environment the alert was raised in.
	Environment string `json:"environment"`

	CreatedAt time.Time `json:"created_at"`
}

// NewAlert returns an alert with a fresh ID.
func NewAlert(service, month, level string, threshold int, now time.Time) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Service:   service,
		Month:     month,
		Level:     level,
		Threshold: threshold,
		CreatedAt: now.UTC(),
	}
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, alert Alert) error {
	level := slog.LevelWarn
	if alert.Level == "critical" {
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, "budget threshold crossed",
		"alert_id", alert.ID,
		"service", alert.Service,
		"month", alert.Month,
		"alert_level", alert.Level,
		"threshold", alert.Threshold,
		"ratio", alert.Ratio,
		"amount", alert.Amount,
		"limit", alert.Limit,
		"currency", alert.Currency)
	return nil
}

// WebhookNotifier posts alerts as JSON. Any non-2xx response is an error.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookNotifier creates a WebhookNotifier for cfg.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultWebhookTimeout
	}
	return &WebhookNotifier{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", alert.ID)
	for k, v := range n.headers {
		req.Header.Set(k, v)
	}
	tracing.Inject(ctx, req.Header)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook delivery failed: status %d", resp.StatusCode)
	}
	return nil
}

// Multi delivers every alert to all notifiers and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the notifier chain configured in cfg.
func FromConfig(cfg config.NotifyConfig, logger *slog.Logger) Notifier {
	var m Multi
	if cfg.LogEnabled() {
		m = append(m, NewLogNotifier(logger))
	}
	if cfg.Webhook.URL != "" {
		m = append(m, NewWebhookNotifier(cfg.Webhook))
	}
	return m
}
