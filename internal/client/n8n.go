package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

// N8n triggers webhook workflows on an n8n instance
type N8n struct {
	http    *HTTPClient
	baseURL string
	apiKey  string
}

// NewN8n creates an n8n client
func NewN8n(h *HTTPClient, baseURL, apiKey string) *N8n {
	return &N8n{
		http:    h,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Configured reports whether a base URL is present
func (n *N8n) Configured() bool {
	return n.baseURL != ""
}

// TriggerWebhook posts the payload to a webhook workflow and returns the raw
// response body
func (n *N8n) TriggerWebhook(
	ctx context.Context, path string, payload api.Args,
) ([]byte, error) {
	if !n.Configured() {
		return nil, fmt.Errorf("%w: n8n", ErrNotConfigured)
	}
	return n.http.do(ctx, request{
		method:  http.MethodPost,
		url:     n.baseURL + "/webhook/" + strings.TrimLeft(path, "/"),
		headers: n.headers(),
		body:    payload,
	})
}

// Ping checks the instance health endpoint
func (n *N8n) Ping(ctx context.Context) error {
	if !n.Configured() {
		return fmt.Errorf("%w: n8n", ErrNotConfigured)
	}
	_, err := n.http.do(ctx, request{
		method:  http.MethodGet,
		url:     n.baseURL + "/healthz",
		headers: n.headers(),
	})
	return err
}

func (n *N8n) headers() map[string]string {
	if n.apiKey == "" {
		return nil
	}
	return map[string]string{"X-N8N-API-KEY": n.apiKey}
}
