// ABOUTME: Built-in client middleware: structured request logging and retry with backoff.
// ABOUTME: Both wrap NextFunc so they compose in any order through WithMiddleware.

package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/2389-research/scout/logging"
)

// LoggingMiddleware logs each call's provider, model, latency, and token usage. A nil logger
// means the one carried by ctx.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req Request, next NextFunc) (*Response, error) {
		log := logger
		if log == nil {
			log = logging.FromContext(ctx)
		}
		start := time.Now()
		resp, err := next(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			log.Warn("llm call failed", "provider", req.Provider, "model", req.Model, "elapsed", elapsed, "error", err)
			return nil, err
		}
		log.Debug("llm call",
			"provider", resp.Provider,
			"model", resp.Model,
			"elapsed", elapsed,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
			"finish", resp.FinishReason.Reason,
		)
		return resp, nil
	}
}

// RetryMiddleware retries retryable failures under policy.
func RetryMiddleware(policy RetryPolicy) Middleware {
	return func(ctx context.Context, req Request, next NextFunc) (*Response, error) {
		var resp *Response
		err := Retry(ctx, policy, func() error {
			var callErr error
			resp, callErr = next(ctx, req)
			return callErr
		})
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
}
