// ABOUTME: Deterministic offline search provider and the provider factory.
// ABOUTME: The mock returns two synthetic hits per query, keyed by the query text.
package search

import (
	"context"
	"fmt"
	"strings"
)

// Mock returns canned results without touching the network.
type Mock struct {
	// PerQuery is the number of results returned for each query. Zero means 2.
	PerQuery int
}

// Name returns "mock".
func (m *Mock) Name() string { return "mock" }

// Search returns "<query> - Result N" hits at https://example.com/<query>_N, with spaces
// in the query replaced by underscores.
func (m *Mock) Search(ctx context.Context, query string) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := m.PerQuery
	if n <= 0 {
		n = 2
	}
	slug := strings.ReplaceAll(query, " ", "_")
	results := make([]Result, n)
	for i := range n {
		results[i] = Result{
			Title: fmt.Sprintf("%s - Result %d", query, i+1),
			URL:   fmt.Sprintf("https://example.com/%s_%d", slug, i+1),
		}
	}
	return results, nil
}

// Keys carries the credentials providers may need.
type Keys struct {
	SerpAPI string
	Tavily  string
}

// New builds the named provider. Supported names are serpapi, tavily, and mock.
func New(name string, keys Keys) (Provider, error) {
	switch strings.ToLower(name) {
	case "serpapi", "google":
		if keys.SerpAPI == "" {
			return nil, fmt.Errorf("search provider %q needs SERPAPI_API_KEY", name)
		}
		return NewSerpAPI(keys.SerpAPI), nil
	case "tavily":
		if keys.Tavily == "" {
			return nil, fmt.Errorf("search provider %q needs TAVILY_API_KEY", name)
		}
		return NewTavily(keys.Tavily, ""), nil
	case "mock":
		return &Mock{}, nil
	default:
		return nil, fmt.Errorf("unknown search provider %q (want serpapi, tavily, or mock)", name)
	}
}
