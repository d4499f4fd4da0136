// ABOUTME: SerpAPI provider issuing Google searches and reading organic results.
// ABOUTME: Queries use safe search, English, and US locale with up to ten results.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SerpAPI searches Google through serpapi.com.
type SerpAPI struct {
	APIKey     string
	BaseURL    string
	NumResults int
	Backoff    Backoff
	client     *http.Client
}

// NewSerpAPI constructs a SerpAPI provider with a 10s HTTP timeout.
func NewSerpAPI(apiKey string) *SerpAPI {
	return NewSerpAPIWithClient(apiKey, &http.Client{Timeout: 10 * time.Second})
}

// NewSerpAPIWithClient constructs a SerpAPI provider using the supplied HTTP client.
func NewSerpAPIWithClient(apiKey string, client *http.Client) *SerpAPI {
	return &SerpAPI{
		APIKey:     apiKey,
		BaseURL:    "https://serpapi.com",
		NumResults: 10,
		Backoff:    DefaultBackoff(),
		client:     client,
	}
}

// Name returns "serpapi".
func (s *SerpAPI) Name() string { return "serpapi" }

// Search runs one Google query.
func (s *SerpAPI) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, errors.New("serpapi: API key is missing")
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", s.APIKey)
	params.Set("num", fmt.Sprint(s.NumResults))
	params.Set("safe", "active")
	params.Set("hl", "en")
	params.Set("gl", "us")
	endpoint := strings.TrimRight(s.BaseURL, "/") + "/search.json?" + params.Encode()

	resp, err := do(ctx, s.client, s.Name(), s.Backoff, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var payload struct {
		Error          string `json:"error"`
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("serpapi: decoding response: %w", err)
	}
	if payload.Error != "" && len(payload.OrganicResults) == 0 {
		// SerpAPI reports "no results" as an error string with a 200.
		if strings.Contains(strings.ToLower(payload.Error), "hasn't returned any results") {
			return nil, nil
		}
		return nil, fmt.Errorf("serpapi: %s", payload.Error)
	}

	results := make([]Result, 0, len(payload.OrganicResults))
	for _, r := range payload.OrganicResults {
		if r.Link == "" {
			continue
		}
		results = append(results, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return truncate(results, s.NumResults), nil
}
