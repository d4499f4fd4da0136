// ABOUTME: HTTP-level tests for the Gemini and OpenAI adapters against httptest servers.
// ABOUTME: Checks request translation, response parsing, and status-code error mapping.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGeminiCompleteTranslatesRequest(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "[\"q1\","}, {"text": "\"q2\"]"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 7, "candidatesTokenCount": 3, "totalTokenCount": 10},
			"modelVersion": "gemini-1.5-flash-002"
		}`)
	}))
	defer srv.Close()

	a := NewGeminiAdapter("secret", WithGeminiBaseURL(srv.URL))
	resp, err := a.Complete(context.Background(), Request{
		Messages:    []Message{SystemMessage("sys"), UserMessage("hello")},
		Temperature: Float64Ptr(0.2),
		MaxTokens:   IntPtr(64),
		JSONOutput:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/v1beta/models/gemini-1.5-flash:generateContent" {
		t.Errorf("got path %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("got key %q", gotKey)
	}
	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Error("systemInstruction missing")
	}
	contents, _ := gotBody["contents"].([]any)
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	gen, _ := gotBody["generationConfig"].(map[string]any)
	if gen["responseMimeType"] != "application/json" || gen["maxOutputTokens"] != float64(64) {
		t.Errorf("unexpected generationConfig: %v", gen)
	}

	if got := resp.Text(); got != `["q1","q2"]` {
		t.Errorf("got text %q", got)
	}
	if resp.Model != "gemini-1.5-flash-002" {
		t.Errorf("got model %q", resp.Model)
	}
	if resp.FinishReason.Reason != FinishStop {
		t.Errorf("got finish %q", resp.FinishReason.Reason)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Errorf("got total tokens %d", resp.Usage.TotalTokens)
	}
}

func TestGeminiErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "4")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error": {"code": 429, "message": "quota", "status": "RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	a := NewGeminiAdapter("k", WithGeminiBaseURL(srv.URL))
	_, err := a.Complete(context.Background(), Request{Model: "m", Messages: []Message{UserMessage("x")}})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %T: %v", err, err)
	}
	if pe.Kind != KindRateLimit || pe.Code != "RESOURCE_EXHAUSTED" || pe.Message != "quota" {
		t.Errorf("unexpected error fields: %+v", pe)
	}
	if pe.RetryAfter != 4*time.Second {
		t.Errorf("got retry after %v", pe.RetryAfter)
	}
	if !pe.IsRetryable() {
		t.Error("rate limit should be retryable")
	}
}

func TestGeminiUnparseableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	}))
	defer srv.Close()

	_, err := NewGeminiAdapter("k", WithGeminiBaseURL(srv.URL)).Complete(context.Background(), Request{})
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != KindServer {
		t.Fatalf("expected server error, got %v", err)
	}
	if !strings.Contains(pe.Message, "502") {
		t.Errorf("message should mention status: %q", pe.Message)
	}
}

func TestGeminiNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := NewGeminiAdapter("k", WithGeminiBaseURL(srv.URL)).Complete(context.Background(), Request{})
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
	if !IsRetryable(err) {
		t.Error("network errors are retryable")
	}
}

func TestOpenAICompleteTranslatesRequest(t *testing.T) {
	var gotBody map[string]any
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"answer\":\"hi\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`)
	}))
	defer srv.Close()

	a := NewOpenAIAdapter("sk-test", srv.URL+"/v1", DefaultAdapterTimeout())
	resp, err := a.Complete(context.Background(), Request{
		Messages:   []Message{SystemMessage("sys"), UserMessage("hello")},
		MaxTokens:  IntPtr(100),
		JSONOutput: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v1/chat/completions" {
		t.Errorf("got path %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("got auth %q", gotAuth)
	}
	if gotBody["model"] != DefaultOpenAIModel {
		t.Errorf("got model %v", gotBody["model"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("got %d messages, want 2", len(msgs))
	}
	rf, _ := gotBody["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("got response_format %v", gotBody["response_format"])
	}

	if resp.Text() != `{"answer":"hi"}` {
		t.Errorf("got text %q", resp.Text())
	}
	if resp.ID != "chatcmpl-1" || resp.Provider != "openai" {
		t.Errorf("unexpected response metadata: %+v", resp)
	}
	if resp.Usage.InputTokens != 5 || resp.Usage.OutputTokens != 2 || resp.Usage.TotalTokens != 7 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
	if resp.FinishReason.Reason != FinishStop {
		t.Errorf("got finish %q", resp.FinishReason.Reason)
	}
}

func TestOpenAIErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"message": "Incorrect API key", "type": "invalid_request_error", "code": "invalid_api_key", "param": null}}`)
	}))
	defer srv.Close()

	a := NewOpenAIAdapter("bad", srv.URL+"/v1", DefaultAdapterTimeout())
	_, err := a.Complete(context.Background(), Request{Messages: []Message{UserMessage("x")}})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %T: %v", err, err)
	}
	if pe.Kind != KindAuthentication || pe.StatusCode != 401 {
		t.Errorf("unexpected error: %+v", pe)
	}
	if pe.IsRetryable() {
		t.Error("auth errors are not retryable")
	}
}
