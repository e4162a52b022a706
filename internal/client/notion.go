package client

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// Notion records pages in a Notion database
type Notion struct {
	http       *HTTPClient
	baseURL    string
	token      string
	databaseID string
}

const (
	notionVersion  = "2022-06-28"
	maxNotionText  = 2000
	notionTitleKey = "Name"
)

// NewNotion creates a Notion client
func NewNotion(h *HTTPClient, baseURL, token, databaseID string) *Notion {
	return &Notion{
		http:       h,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		databaseID: databaseID,
	}
}

// Configured reports whether a token and database are present
func (n *Notion) Configured() bool {
	return n.token != "" && n.databaseID != ""
}

// CreatePage adds a page to the database. The title fills the "Name"
// property and every other field becomes a rich text property. Returns the
// new page ID
func (n *Notion) CreatePage(
	ctx context.Context, title string, fields map[string]string,
) (string, error) {
	if !n.Configured() {
		return "", fmt.Errorf("%w: notion", ErrNotConfigured)
	}

	props := map[string]any{
		notionTitleKey: map[string]any{
			"title": []any{notionText(title)},
		},
	}
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		props[k] = map[string]any{
			"rich_text": []any{notionText(fields[k])},
		}
	}

	res, err := n.http.do(ctx, request{
		method:  http.MethodPost,
		url:     n.baseURL + "/v1/pages",
		headers: n.headers(),
		body: map[string]any{
			"parent":     map[string]any{"database_id": n.databaseID},
			"properties": props,
		},
	})
	if err != nil {
		return "", err
	}

	id := gjson.GetBytes(res, "id")
	if !id.Exists() {
		return "", fmt.Errorf("%w: page has no id", ErrBadResponse)
	}
	return id.String(), nil
}

// Ping checks that the integration token is accepted
func (n *Notion) Ping(ctx context.Context) error {
	if !n.Configured() {
		return fmt.Errorf("%w: notion", ErrNotConfigured)
	}
	_, err := n.http.do(ctx, request{
		method:  http.MethodGet,
		url:     n.baseURL + "/v1/users/me",
		headers: n.headers(),
	})
	return err
}

func (n *Notion) headers() map[string]string {
	return map[string]string{
		"Authorization":  "Bearer " + n.token,
		"Notion-Version": notionVersion,
	}
}

func notionText(s string) map[string]any {
	if len(s) > maxNotionText {
		s = s[:maxNotionText]
	}
	return map[string]any{
		"type": "text",
		"text": map[string]any{"content": s},
	}
}
