package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

type Provider interface {
	PostMessage(ctx context.Context, channelID string, message string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, channelID string, message string) error {
	return nil
}

// WebhookProvider posts messages to a Slack incoming webhook.
type WebhookProvider struct {
	webhookURL string
	client     *http.Client
}

func NewWebhookProvider(client *http.Client) Provider {
	url := strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL"))
	if url == "" {
		return &NoOpProvider{}
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookProvider{webhookURL: url, client: client}
}

func (p *WebhookProvider) PostMessage(ctx context.Context, channelID string, message string) error {
	payload := map[string]string{"text": message}
	if channelID != "" {
		payload["channel"] = channelID
	}
	body, err := json.Marshal(payload)
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

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode)
	}
	return nil
}
