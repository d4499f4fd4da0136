// ABOUTME: Web search provider abstraction shared by the SerpAPI, Tavily, and mock backends.
// ABOUTME: Includes the HTTP 429 backoff loop every network provider uses.
package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Provider runs a single web search.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
}

// HTTPError reports a non-2xx response from a search API.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, e.Body)
}

// RateLimited reports whether the provider was still throttling when attempts ran out.
func (e *HTTPError) RateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// Backoff controls how 429 responses are retried: the delay starts at Initial and doubles
// up to Max, for at most MaxAttempts requests in total.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff starts at 1s, caps at 30s, and gives up after 5 requests.
func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: 30 * time.Second, MaxAttempts: 5}
}

// do sends the request built by newReq, retrying on 429 per b. The caller closes the body
// of a successful response. Non-2xx responses are returned as *HTTPError.
func do(ctx context.Context, client *http.Client, provider string, b Backoff, newReq func() (*http.Request, error)) (*http.Response, error) {
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 1
	}
	delay := b.Initial
	for attempt := 1; ; attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", provider, err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		body := readSnippet(resp)
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= b.MaxAttempts {
			return nil, &HTTPError{Provider: provider, StatusCode: resp.StatusCode, Body: body}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < b.Max {
			delay = min(delay*2, b.Max)
		}
	}
}

// readSnippet drains and closes resp.Body, returning at most a short prefix for errors.
func readSnippet(resp *http.Response) string {
	defer func() { _ = resp.Body.Close() }()
	buf := make([]byte, 256)
	n, _ := resp.Body.Read(buf)
	return strings.TrimSpace(string(buf[:n]))
}

func truncate(results []Result, limit int) []Result {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
