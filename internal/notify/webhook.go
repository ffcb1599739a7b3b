package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/PatrionDigital/tradewire/internal/domain"
)

// defaultWebhookTimeout bounds a single webhook delivery attempt.
const defaultWebhookTimeout = 10 * time.Second

// webhookPayload is the JSON body posted to webhook endpoints.
type webhookPayload struct {
	ID        string                  `json:"id"`
	Event     domain.NotificationKind `json:"event"`
	Timestamp time.Time               `json:"timestamp"`
	Venue     domain.Venue            `json:"venue"`
	Recipient string                  `json:"recipient"`
	Message   string                  `json:"message"`
	Order     *domain.Order           `json:"order,omitempty"`
	Fills     []domain.Fill           `json:"fills,omitempty"`
}

// WebhookClient delivers notifications as signed-by-header HTTP POSTs. Any
// non-2xx response or timeout is a delivery failure.
type WebhookClient struct {
	client *http.Client
}

// NewWebhookClient creates a WebhookClient with the given per-request
// timeout. A non-positive timeout selects the 10-second default.
func NewWebhookClient(timeout time.Duration) *WebhookClient {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts the notification to url. The returned error message carries the
// response status for non-2xx replies and "timed out" for timeouts, which the
// notifier records verbatim as the delivery error.
func (w *WebhookClient) Send(ctx context.Context, url string, n domain.Notification) error {
	payload := webhookPayload{
		ID:        n.ID,
		Event:     n.Kind,
		Timestamp: n.Timestamp,
		Venue:     n.Venue,
		Recipient: n.Recipient,
		Message:   n.Message,
		Order:     n.Order,
		Fills:     n.Fills,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tradewire-Event", string(n.Kind))
	req.Header.Set("X-Tradewire-Notification", n.ID)

	resp, err := w.client.Do(req)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return fmt.Errorf("webhook: request timed out after %s", w.client.Timeout)
		}
		return fmt.Errorf("webhook: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
