package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"campus-events/internal/util"

	"go.uber.org/zap"
)

// WebhookSender posts JSON announcements to organizer-configured URLs
type WebhookSender struct {
	client *http.Client
	logger *zap.Logger
}

// NewWebhookSender creates a sender whose requests give up after timeout
func NewWebhookSender(timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		client: &http.Client{Timeout: timeout},
		logger: util.GetLogger(),
	}
}

// Announcement is the webhook body for a newly published event
type Announcement struct {
	Content string `json:"content"`
	EventID string `json:"event_id"`
	Name    string `json:"name"`
	StartAt string `json:"start_at"`
}

// Post delivers payload to url. Any non-2xx response is an error.
func (w *WebhookSender) Post(ctx context.Context, url string, payload interface{}) error {
	ctx, span := util.StartSpan(ctx, "WebhookSender.Post")
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	w.logger.Debug("Webhook delivered", zap.String("url", url), zap.Int("status", resp.StatusCode))
	return nil
}
