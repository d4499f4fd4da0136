// ABOUTME: Client routes completion requests to registered provider adapters through a middleware chain.
// ABOUTME: FromEnv wires real Gemini and OpenAI adapters from API keys in the environment.

package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
)

// Middleware wraps an LLM call. Middleware runs in registration order on the way in and
// reverse order on the way out.
type Middleware func(ctx context.Context, req Request, next NextFunc) (*Response, error)

// NextFunc is the function signature passed to middleware to continue the chain.
type NextFunc func(ctx context.Context, req Request) (*Response, error)

// Client is the entry point for LLM calls.
type Client struct {
	mu              sync.RWMutex
	providers       map[string]ProviderAdapter
	defaultProvider string
	middleware      []Middleware
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithProvider registers adapter under name. The first registered provider becomes the
// default unless WithDefaultProvider says otherwise.
func WithProvider(name string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.providers[name] = adapter
		if c.defaultProvider == "" {
			c.defaultProvider = name
		}
	}
}

// WithDefaultProvider sets the provider used when a Request leaves Provider empty.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

// WithMiddleware appends middleware to the chain.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// NewClient creates a new Client with the given options applied.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{providers: make(map[string]ProviderAdapter)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnvConfig selects how FromEnv builds adapters.
type EnvConfig struct {
	Provider      string // preferred default provider; empty picks the first key found
	OpenAIBaseURL string // overrides OPENAI_BASE_URL
	Timeout       AdapterTimeout
}

// FromEnv creates a Client from GEMINI_API_KEY and OPENAI_API_KEY (checked in that order).
// Returns a ConfigurationError if no key is set or the preferred provider has none.
func FromEnv(cfg EnvConfig, opts ...ClientOption) (*Client, error) {
	if cfg.Timeout == (AdapterTimeout{}) {
		cfg.Timeout = DefaultAdapterTimeout()
	}
	var clientOpts []ClientOption
	var found []string

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		clientOpts = append(clientOpts, WithProvider("gemini", NewGeminiAdapter(key, WithGeminiTimeout(cfg.Timeout))))
		found = append(found, "gemini")
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		baseURL := cfg.OpenAIBaseURL
		if baseURL == "" {
			baseURL = os.Getenv("OPENAI_BASE_URL")
		}
		clientOpts = append(clientOpts, WithProvider("openai", NewOpenAIAdapter(key, baseURL, cfg.Timeout)))
		found = append(found, "openai")
	}

	if len(found) == 0 {
		return nil, &ConfigurationError{Message: "no API keys found in environment (checked GEMINI_API_KEY, OPENAI_API_KEY)"}
	}
	if cfg.Provider != "" {
		if !slices.Contains(found, cfg.Provider) {
			return nil, &ConfigurationError{Message: fmt.Sprintf("provider %q selected but its API key is not set", cfg.Provider)}
		}
		clientOpts = append(clientOpts, WithDefaultProvider(cfg.Provider))
	}
	return NewClient(append(clientOpts, opts...)...), nil
}

func (c *Client) resolveProvider(req Request) (ProviderAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name := req.Provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		return nil, &ConfigurationError{Message: "no provider specified and no default provider configured"}
	}
	adapter, ok := c.providers[name]
	if !ok {
		return nil, &ConfigurationError{Message: fmt.Sprintf("provider %q is not registered", name)}
	}
	return adapter, nil
}

// Complete sends req to its provider through the middleware chain.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	adapter, err := c.resolveProvider(req)
	if err != nil {
		return nil, err
	}
	if req.Provider == "" {
		req.Provider = adapter.Name()
	}

	handler := NextFunc(adapter.Complete)
	for i := len(c.middleware) - 1; i >= 0; i-- {
		mw := c.middleware[i]
		next := handler
		handler = func(ctx context.Context, req Request) (*Response, error) {
			return mw(ctx, req, next)
		}
	}
	return handler(ctx, req)
}

// DefaultProvider returns the provider used for requests that do not name one.
func (c *Client) DefaultProvider() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultProvider
}

// RegisterProvider adds or replaces a provider after construction.
func (c *Client) RegisterProvider(name string, adapter ProviderAdapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = adapter
	if c.defaultProvider == "" {
		c.defaultProvider = name
	}
}

// Close closes every registered adapter and returns their joined errors.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for name, adapter := range c.providers {
		if err := adapter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing provider %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
