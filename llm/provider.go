// ABOUTME: ProviderAdapter interface and the shared HTTP plumbing adapters embed.
// ABOUTME: BaseAdapter builds JSON requests, applies auth and default headers, and reads Retry-After.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ProviderAdapter sends completion requests to one LLM provider.
type ProviderAdapter interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// BaseAdapter provides common HTTP functionality shared across provider adapters.
type BaseAdapter struct {
	APIKey         string
	BaseURL        string
	DefaultHeaders map[string]string
	Timeout        AdapterTimeout
	HTTPClient     *http.Client
}

// NewBaseAdapter creates a BaseAdapter whose HTTP client honours timeout.
func NewBaseAdapter(apiKey, baseURL string, timeout AdapterTimeout) *BaseAdapter {
	return &BaseAdapter{
		APIKey:         apiKey,
		BaseURL:        strings.TrimRight(baseURL, "/"),
		DefaultHeaders: make(map[string]string),
		Timeout:        timeout,
		HTTPClient:     newHTTPClient(timeout),
	}
}

func newHTTPClient(timeout AdapterTimeout) *http.Client {
	dialer := &net.Dialer{Timeout: timeout.Connect}
	return &http.Client{
		Timeout:   timeout.Request,
		Transport: &http.Transport{DialContext: dialer.DialContext, Proxy: http.ProxyFromEnvironment},
	}
}

// DoRequest JSON-encodes body, sets Bearer auth when an API key is configured, applies
// default then per-request headers, and returns the raw response body and status.
func (b *BaseAdapter) DoRequest(ctx context.Context, method, path string, body any, headers map[string]string) (int, http.Header, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, b.BaseURL+path, reader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("creating request: %w", err)
	}
	if b.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.APIKey)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range b.DefaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := b.HTTPClient.Do(httpReq)
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, resp.Header, respBody, nil
}

// ParseRetryAfter reads a Retry-After header given in seconds. Zero means no hint.
func ParseRetryAfter(headers http.Header) time.Duration {
	v := headers.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}

// ExtractSystemMessages joins the text of all system messages and returns the rest in order.
func ExtractSystemMessages(messages []Message) (systemText string, remaining []Message) {
	var systemParts []string
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if msg.Content != "" {
				systemParts = append(systemParts, msg.Content)
			}
			continue
		}
		remaining = append(remaining, msg)
	}
	return strings.Join(systemParts, "\n"), remaining
}
