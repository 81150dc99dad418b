// Package webhook ships a generic outbound HTTP connector. It exists so a
// fresh deployment has something useful in the catalog before any
// provider-specific connectors are registered.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/patchbay-io/patchbay/internal/connector"
	"github.com/patchbay-io/patchbay/internal/registry"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 1 << 20
)

// Definition describes the webhook integration for the catalog.
func Definition() registry.IntegrationDefinition {
	return registry.IntegrationDefinition{
		ID:           "webhook",
		DisplayName:  "Webhook",
		Description:  "Send requests to an arbitrary HTTP endpoint",
		Category:     "http",
		Capabilities: []string{"actions"},
		ConfigSchema: map[string]any{
			"type":                 "object",
			"required":             []any{"url"},
			"additionalProperties": false,
			"properties": map[string]any{
				"url": map[string]any{"type": "string"},
				"headers": map[string]any{
					"type":                 "object",
					"additionalProperties": map[string]any{"type": "string"},
				},
			},
		},
		CredentialsSchema: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"token": map[string]any{"type": "string"},
			},
		},
	}
}

// Factory builds a webhook connector from validated config and credentials.
func Factory(cfg map[string]any, creds map[string]string) (connector.Connector, error) {
	url, _ := cfg["url"].(string)
	headers := map[string]string{}
	if raw, ok := cfg["headers"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}
	return &Webhook{
		url:     strings.TrimSpace(url),
		headers: headers,
		token:   creds["token"],
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Webhook posts JSON payloads to a single configured endpoint.
type Webhook struct {
	url     string
	headers map[string]string
	token   string
	client  *http.Client
}

func (w *Webhook) Initialize(ctx context.Context) error {
	parsed, err := neturl.Parse(w.url)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("webhook url is missing a host")
	}
	return nil
}

func (w *Webhook) Actions() []connector.Action {
	return []connector.Action{
		{
			ID:          "post",
			Name:        "POST payload",
			Description: "Send a JSON payload to the configured endpoint",
			Schema: map[string]any{
				"type":                 "object",
				"required":             []any{"payload"},
				"additionalProperties": false,
				"properties": map[string]any{
					"payload": map[string]any{"type": "object"},
					"path":    map[string]any{"type": "string"},
				},
			},
			Execute: w.executePost,
		},
		{
			ID:          "get",
			Name:        "GET",
			Description: "Fetch the configured endpoint",
			Schema: map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"path": map[string]any{"type": "string"},
					"query": map[string]any{
						"type":                 "object",
						"additionalProperties": map[string]any{"type": "string"},
					},
				},
			},
			Execute: w.executeGet,
		},
	}
}

func (w *Webhook) TestConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.url, nil)
	if err != nil {
		return false
	}
	w.decorate(req)
	resp, err := w.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func (w *Webhook) Capabilities() connector.Capabilities {
	return connector.Capabilities{MaxConcurrency: 10}
}

func (w *Webhook) executePost(ctx context.Context, _ connector.ExecutionContext, params map[string]any) (any, error) {
	body, err := json.Marshal(params["payload"])
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	url, err := w.resolve(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	w.decorate(req)
	return w.do(req)
}

func (w *Webhook) executeGet(ctx context.Context, _ connector.ExecutionContext, params map[string]any) (any, error) {
	url, err := w.resolve(params)
	if err != nil {
		return nil, err
	}
	if raw, ok := params["query"].(map[string]any); ok && len(raw) > 0 {
		parsed, err := neturl.Parse(url)
		if err != nil {
			return nil, fmt.Errorf("webhook url: %w", err)
		}
		values := parsed.Query()
		for k, v := range raw {
			if s, ok := v.(string); ok {
				values.Set(k, s)
			}
		}
		parsed.RawQuery = values.Encode()
		url = parsed.String()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	w.decorate(req)
	return w.do(req)
}

// resolve joins an optional per-call path onto the configured endpoint.
func (w *Webhook) resolve(params map[string]any) (string, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return w.url, nil
	}
	base, err := neturl.Parse(w.url)
	if err != nil {
		return "", fmt.Errorf("webhook url: %w", err)
	}
	ref, err := neturl.Parse(path)
	if err != nil {
		return "", fmt.Errorf("webhook path: %w", err)
	}
	resolved := base.ResolveReference(ref)
	if resolved.Host != base.Host {
		return "", errors.New("webhook path may not change the host")
	}
	return resolved.String(), nil
}

func (w *Webhook) decorate(req *http.Request) {
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}
}

func (w *Webhook) do(req *http.Request) (any, error) {
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	result := map[string]any{"status": resp.StatusCode}
	var decoded any
	if json.Unmarshal(body, &decoded) == nil {
		result["body"] = decoded
	} else {
		result["body"] = string(body)
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
