package client

import (
	"context"
	"fmt"
	"net/http"
)

// Slack posts messages to an incoming webhook
type Slack struct {
	http       *HTTPClient
	webhookURL string
}

// NewSlack creates a Slack client
func NewSlack(h *HTTPClient, webhookURL string) *Slack {
	return &Slack{
		http:       h,
		webhookURL: webhookURL,
	}
}

// Configured reports whether a webhook URL is present
func (s *Slack) Configured() bool {
	return s.webhookURL != ""
}

// Post sends a plain text message
func (s *Slack) Post(ctx context.Context, text string) error {
	if !s.Configured() {
		return fmt.Errorf("%w: slack", ErrNotConfigured)
	}
	_, err := s.http.do(ctx, request{
		method: http.MethodPost,
		url:    s.webhookURL,
		body:   map[string]string{"text": text},
	})
	return err
}

// Ping reports whether the client is configured. Incoming webhooks have no
// side-effect free endpoint to probe
func (s *Slack) Ping(context.Context) error {
	if !s.Configured() {
		return fmt.Errorf("%w: slack", ErrNotConfigured)
	}
	return nil
}
