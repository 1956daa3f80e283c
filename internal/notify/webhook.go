// Package notify delivers finished reports to people and systems.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"attorney-splits/internal/observability/metrics"
	"attorney-splits/internal/splits/application"
)

// WebhookNotifier announces published reports to a chat-style webhook.
type WebhookNotifier struct {
	url      string
	client   *http.Client
	template *Template
}

// WebhookOption customizes a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithTemplate sets the text template of the message.
func WithTemplate(t *Template) WebhookOption {
	return func(n *WebhookNotifier) {
		if t != nil {
			n.template = t
		}
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) WebhookOption {
	return func(n *WebhookNotifier) {
		if d > 0 {
			n.client.Timeout = d
		}
	}
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
	Report  any         `json:"report"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string, opts ...WebhookOption) *WebhookNotifier {
	n := &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	if n.template == nil {
		n.template, _ = NewTemplate("")
	}
	return n
}

// NotifyReport posts the notice to the webhook.
func (n *WebhookNotifier) NotifyReport(ctx context.Context, notice application.ReportNotice) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	content, err := n.template.Render(notice)
	if err != nil {
		return fmt.Errorf("webhook notifier: render: %w", err)
	}
	body, err := json.Marshal(webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: content},
		Report:  notice,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		metrics.IncDelivery("webhook", metrics.ResultError)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		metrics.IncDelivery("webhook", metrics.ResultError)
		return fmt.Errorf("webhook notifier: http %d", resp.StatusCode)
	}
	metrics.IncDelivery("webhook", metrics.ResultSuccess)
	return nil
}
