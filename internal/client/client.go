package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teano-uTTu-9788/AiCan/pkg/log"
)

type (
	// HTTPClient is the JSON transport shared by every SaaS client
	HTTPClient struct {
		httpClient *http.Client
		userAgent  string
	}

	// Pinger is implemented by every client that can report reachability
	Pinger interface {
		Ping(ctx context.Context) error
	}

	request struct {
		body    any
		headers map[string]string
		method  string
		url     string
	}
)

const maxErrorBody = 512

var (
	ErrHTTPError     = errors.New("service returned HTTP error")
	ErrNotConfigured = errors.New("service not configured")
	ErrBadResponse   = errors.New("unexpected service response")
)

// NewHTTPClient creates a transport whose requests time out after timeout
func NewHTTPClient(timeout time.Duration, userAgent string) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
	}
}

func (c *HTTPClient) do(ctx context.Context, r request) ([]byte, error) {
	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, err
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	dur := time.Since(start)
	if err != nil {
		slog.Error("HTTP request failed",
			slog.String("method", r.method),
			slog.String("url", req.URL.Redacted()),
			slog.Duration("duration", dur),
			log.Error(err))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("HTTP error",
			slog.String("method", r.method),
			slog.String("url", req.URL.Redacted()),
			slog.Int("status_code", resp.StatusCode),
			slog.Duration("duration", dur))
		return nil, fmt.Errorf("%w: HTTP %d: %s",
			ErrHTTPError, resp.StatusCode, truncate(respBody))
	}

	slog.Debug("HTTP request completed",
		slog.String("method", r.method),
		slog.String("url", req.URL.Redacted()),
		slog.Int("status_code", resp.StatusCode),
		slog.Duration("duration", dur))
	return respBody, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
