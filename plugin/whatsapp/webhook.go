package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// SignatureHeader is the header Meta signs webhook deliveries with.
const SignatureHeader = "X-Hub-Signature-256"

// WebhookPayload is the envelope the Cloud API posts to the webhook.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the changes of one webhook delivery.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change carries one field's value object.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue holds the inbound messages, contacts and status updates.
type ChangeValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Contacts         []Contact         `json:"contacts"`
	Messages         []InboundMessage  `json:"messages"`
	Statuses         []json.RawMessage `json:"statuses"`
}

// Contact identifies the sender of an inbound message.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// InboundMessage is one received message.
type InboundMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// TextMessage is the flattened form handed to the message handler.
type TextMessage struct {
	From string
	Name string
	Body string
}

// ParsePayload decodes a webhook body.
func ParsePayload(body []byte) (*WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// IsStatusUpdate reports whether the delivery only carries message
// status transitions (sent/delivered/read), which need no reply.
func (p *WebhookPayload) IsStatusUpdate() bool {
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if len(change.Value.Statuses) > 0 {
				return true
			}
		}
	}
	return false
}

// IsValidMessage reports whether the payload carries at least one
// inbound message.
func (p *WebhookPayload) IsValidMessage() bool {
	return p.Object != "" &&
		len(p.Entry) > 0 &&
		len(p.Entry[0].Changes) > 0 &&
		len(p.Entry[0].Changes[0].Value.Messages) > 0
}

// FirstTextMessage extracts the first text message of the payload. The
// sender handle prefers the contact wa_id and falls back to the message
// "from" field.
func (p *WebhookPayload) FirstTextMessage() (*TextMessage, bool) {
	if !p.IsValidMessage() {
		return nil, false
	}
	value := p.Entry[0].Changes[0].Value
	msg := value.Messages[0]
	if msg.Type != "text" {
		return nil, false
	}

	text := &TextMessage{From: msg.From, Body: msg.Text.Body}
	if len(value.Contacts) > 0 {
		contact := value.Contacts[0]
		if contact.WaID != "" {
			text.From = contact.WaID
		}
		text.Name = contact.Profile.Name
	}
	return text, true
}

// ValidateSignature checks the HMAC-SHA256 signature Meta computes over
// the raw request body. header is the X-Hub-Signature-256 value,
// "sha256=<hex>". An empty appSecret disables verification.
func ValidateSignature(body []byte, header string, appSecret string) bool {
	if appSecret == "" {
		return true
	}
	signature, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(expected, mac.Sum(nil))
}
