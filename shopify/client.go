// Package shopify talks to the commerce platform's REST and GraphQL Admin
// APIs. Every call is a plain synchronous HTTP request with a bounded
// timeout; there is no retry layer, callers see the first failure.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/replyloop/replyloop/credentials"
)

const (
	DefaultAPIVersion = "2024-10"
	defaultTimeout    = 8 * time.Second
	maxErrorBodyBytes = 4 * 1024
)

type Client struct {
	Shop       credentials.Shop
	APIVersion string
	HTTPClient *http.Client
	Log        *slog.Logger

	// BaseURL overrides the shop-domain URL in tests.
	BaseURL string
}

func NewClient(shop credentials.Shop, apiVersion string, timeout time.Duration, log *slog.Logger) *Client {
	if strings.TrimSpace(apiVersion) == "" {
		apiVersion = DefaultAPIVersion
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		Shop:       shop,
		APIVersion: apiVersion,
		HTTPClient: &http.Client{Timeout: timeout},
		Log:        log,
	}
}

// HTTPError wraps a non-2xx platform response with a best-effort message
// extracted from the body.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("platform responded with status %d", e.Status)
	}
	return fmt.Sprintf("platform responded with status %d: %s", e.Status, e.Message)
}

func (c *Client) adminURL(path string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = "https://" + strings.TrimSpace(c.Shop.Domain)
	}
	return fmt.Sprintf("%s/admin/api/%s%s", base, c.APIVersion, path)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.adminURL(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", c.Shop.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Status: resp.StatusCode, Message: extractErrorMessage(data)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode platform response: %w", err)
		}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) putJSON(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// GraphQL posts one query to the Admin GraphQL endpoint and returns the raw
// response for field extraction. Transport-level GraphQL errors (the
// top-level "errors" list) are returned as an error; mutation userErrors
// are left to the caller, they are field-specific.
func (c *Client) GraphQL(ctx context.Context, query string, vars map[string]any) (gjson.Result, error) {
	payload := map[string]any{"query": query}
	if len(vars) > 0 {
		payload["variables"] = vars
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.adminURL("/graphql.json"), bytes.NewReader(b))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("X-Shopify-Access-Token", c.Shop.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gjson.Result{}, &HTTPError{Status: resp.StatusCode, Message: extractErrorMessage(data)}
	}

	res := gjson.ParseBytes(data)
	if errs := res.Get("errors"); errs.Exists() && errs.IsArray() && len(errs.Array()) > 0 {
		msgs := make([]string, 0, len(errs.Array()))
		for _, e := range errs.Array() {
			if m := e.Get("message").String(); m != "" {
				msgs = append(msgs, m)
			}
		}
		return gjson.Result{}, fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; "))
	}
	return res, nil
}

// extractErrorMessage digs a human-readable message out of a platform error
// body. Preference order: errors list/object, error field, raw text,
// nothing (the caller's generic status message stands).
func extractErrorMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil {
		if msg := flattenErrors(parsed["errors"]); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(fmt.Sprint(parsed["error"])); msg != "" && parsed["error"] != nil {
			return msg
		}
	}
	if len(text) > maxErrorBodyBytes {
		text = text[:maxErrorBodyBytes]
	}
	return text
}

func flattenErrors(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := flattenErrors(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		parts := make([]string, 0, len(x))
		for k, e := range x {
			if s := flattenErrors(e); s != "" {
				parts = append(parts, fmt.Sprintf("%s: %s", k, s))
			}
		}
		return strings.Join(parts, "; ")
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
