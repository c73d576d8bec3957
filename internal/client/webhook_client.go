package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/LeventeLantos/schoolwire/internal/model"
)

// Delivery is one message handed to a provider.
type Delivery struct {
	ProviderMessageID string
	Channel           model.Channel
	To                string
	Content           model.Content
}

// WebhookClient submits deliveries to a provider webhook. The provider reports
// outcomes later through the status callback endpoints, keyed by
// providerMessageId.
type WebhookClient struct {
	url    string
	client *http.Client
}

func NewWebhookClient(url string) *WebhookClient {
	return &WebhookClient{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendRequest struct {
	ProviderMessageID string        `json:"providerMessageId"`
	Channel           model.Channel `json:"channel"`
	To                string        `json:"to"`
	Message           string        `json:"message,omitempty"`
	Subject           string        `json:"subject,omitempty"`
	Body              string        `json:"body,omitempty"`
}

type sendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// Send returns the message id the provider acknowledged.
func (c *WebhookClient) Send(ctx context.Context, d Delivery) (string, error) {
	payload := sendRequest{
		ProviderMessageID: d.ProviderMessageID,
		Channel:           d.Channel,
		To:                d.To,
	}
	if d.Content.Email != nil {
		payload.Subject = d.Content.Email.Subject
		payload.Body = d.Content.Email.Body
	} else {
		payload.Message = d.Content.Text
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if sr.MessageID == "" {
		return "", fmt.Errorf("missing messageId in response body=%q", string(body))
	}

	return sr.MessageID, nil
}
