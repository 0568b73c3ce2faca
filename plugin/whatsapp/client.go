// Package whatsapp integrates with the Meta WhatsApp Cloud API: an
// outbound text sender plus the inbound webhook payload model and its
// signature verification.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const defaultGraphEndpoint = "https://graph.facebook.com"

// ClientConfig holds the Cloud API credentials.
type ClientConfig struct {
	AccessToken   string
	PhoneNumberID string
	// APIVersion is the Graph API version segment, e.g. "v18.0".
	APIVersion string
	Endpoint   string
	Timeout    time.Duration
}

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Cloud API client.
func NewClient(config ClientConfig) *Client {
	if config.APIVersion == "" {
		config.APIVersion = "v18.0"
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultGraphEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: slog.Default(),
	}
}

type textMessagePayload struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// SendText sends a plain text message to a phone number.
func (c *Client) SendText(ctx context.Context, to string, body string) error {
	payload := textMessagePayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             textBody{PreviewURL: false, Body: body},
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message payload")
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.config.Endpoint, c.config.APIVersion, c.config.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return errors.Wrap(err, "failed to create message request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "message request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.logger.Error("message send rejected",
			"to", to,
			"status", resp.StatusCode,
			"response", string(respBody))
		return errors.Errorf("message send returned status %d", resp.StatusCode)
	}

	c.logger.Debug("message sent", "to", to, "length", len(body))
	return nil
}

// Deliver satisfies the notification sink contract used by the reminder
// planner.
func (c *Client) Deliver(ctx context.Context, recipient string, text string) error {
	return c.SendText(ctx, recipient, text)
}
