package alerts

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Notifier delivers an alert to whoever acts on expiring stock.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// WebhookNotifier posts alerts as JSON to a configured URL.
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
}

func NewWebhookNotifier(url, token string, timeout time.Duration) *WebhookNotifier {
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &WebhookNotifier{httpClient: client, url: url}
}

type webhookPayload struct {
	Event string `json:"event"`
	Alert
	ExpiryDate string `json:"expiry_date"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, alert Alert) error {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(webhookPayload{
			Event:      "rare_blood_expiry",
			Alert:      alert,
			ExpiryDate: alert.Unit.ExpiryDate.Format("2006-01-02"),
		}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("post alert webhook: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("alert webhook error: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	return nil
}

// LogNotifier only logs alerts. Used when no webhook is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, alert Alert) error {
	n.logger.Warn("rare blood expiry alert",
		zap.String("priority", string(alert.Priority)),
		zap.Int("days_to_expiry", alert.DaysToExpiry),
		zap.Uint("segregation_id", alert.Unit.SegregationID),
		zap.String("centre_id", alert.Unit.CentreID),
		zap.String("blood_group", alert.Unit.BloodGroupName),
		zap.String("component", string(alert.Unit.Component)))
	return nil
}
