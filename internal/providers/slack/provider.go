// Package slack posts cost alerts to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Provider delivers operator-facing notifications.
type Provider interface {
	Notify(ctx context.Context, text string) error
}

// NoOpProvider is used when no webhook is configured.
type NoOpProvider struct{}

func (NoOpProvider) Notify(ctx context.Context, text string) error { return nil }

type WebhookProvider struct {
	webhookURL string
	channel    string
	client     *http.Client
}

func NewWebhookProvider(webhookURL, channel string) *WebhookProvider {
	return &WebhookProvider{
		webhookURL: webhookURL,
		channel:    channel,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

func (p *WebhookProvider) Notify(ctx context.Context, text string) error {
	body, err := json.Marshal(webhookPayload{Channel: p.channel, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}
