// ABOUTME: Gemini provider adapter using the native generateContent REST endpoint.
// ABOUTME: System messages become systemInstruction; JSON output sets responseMimeType.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultGeminiModel is used when a request does not name a model.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiAdapter implements ProviderAdapter for Google's Gemini API. Authentication is by
// query parameter, so the embedded BaseAdapter carries no bearer key.
type GeminiAdapter struct {
	apiKey string
	base   *BaseAdapter
}

// GeminiOption is a functional option for configuring a GeminiAdapter.
type GeminiOption func(*GeminiAdapter)

// WithGeminiBaseURL overrides https://generativelanguage.googleapis.com.
func WithGeminiBaseURL(u string) GeminiOption {
	return func(a *GeminiAdapter) {
		a.base.BaseURL = strings.TrimRight(u, "/")
	}
}

// WithGeminiTimeout sets the timeout configuration for the adapter.
func WithGeminiTimeout(timeout AdapterTimeout) GeminiOption {
	return func(a *GeminiAdapter) {
		a.base.Timeout = timeout
		a.base.HTTPClient = newHTTPClient(timeout)
	}
}

// NewGeminiAdapter creates a GeminiAdapter with the given API key and options.
func NewGeminiAdapter(apiKey string, opts ...GeminiOption) *GeminiAdapter {
	a := &GeminiAdapter{
		apiKey: apiKey,
		base:   NewBaseAdapter("", "https://generativelanguage.googleapis.com", DefaultAdapterTimeout()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns "gemini".
func (a *GeminiAdapter) Name() string { return "gemini" }

// Close releases any resources held by the adapter.
func (a *GeminiAdapter) Close() error { return nil }

// Complete sends a generateContent request and returns the unified Response.
func (a *GeminiAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	path := fmt.Sprintf("/v1beta/models/%s:generateContent?key=%s", url.PathEscape(model), url.QueryEscape(a.apiKey))

	status, headers, body, err := a.base.DoRequest(ctx, http.MethodPost, path, a.buildRequestBody(req), nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Provider: "gemini", Cause: err}
	}
	if status != http.StatusOK {
		return nil, a.parseErrorResponse(status, headers, body)
	}
	return a.parseResponse(model, body)
}

func (a *GeminiAdapter) buildRequestBody(req Request) map[string]any {
	body := make(map[string]any)

	systemText, remaining := ExtractSystemMessages(req.Messages)
	if systemText != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": systemText}},
		}
	}

	contents := make([]map[string]any, 0, len(remaining))
	for _, msg := range remaining {
		if msg.Content == "" {
			continue
		}
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, map[string]any{
			"role":  role,
			"parts": []map[string]any{{"text": msg.Content}},
		})
	}
	body["contents"] = contents

	genConfig := make(map[string]any)
	if req.Temperature != nil {
		genConfig["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		genConfig["maxOutputTokens"] = *req.MaxTokens
	}
	if req.JSONOutput {
		genConfig["responseMimeType"] = "application/json"
	}
	if len(genConfig) > 0 {
		body["generationConfig"] = genConfig
	}
	return body
}

func (a *GeminiAdapter) parseResponse(model string, respBody []byte) (*Response, error) {
	var gr geminiResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, fmt.Errorf("parsing Gemini response: %w", err)
	}

	resp := &Response{
		Provider: "gemini",
		Model:    model,
		Message:  Message{Role: RoleAssistant},
		Raw:      json.RawMessage(respBody),
	}
	if gr.ModelVersion != "" {
		resp.Model = gr.ModelVersion
	}
	if len(gr.Candidates) > 0 {
		candidate := gr.Candidates[0]
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
		resp.Message.Content = sb.String()
		resp.FinishReason = mapGeminiFinishReason(candidate.FinishReason)
	}
	if gr.UsageMetadata != nil {
		resp.Usage = Usage{
			InputTokens:  gr.UsageMetadata.PromptTokenCount,
			OutputTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  gr.UsageMetadata.TotalTokenCount,
		}
	}
	return resp, nil
}

func mapGeminiFinishReason(raw string) FinishReason {
	var reason string
	switch raw {
	case "STOP":
		reason = FinishStop
	case "MAX_TOKENS":
		reason = FinishLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		reason = FinishContentFilter
	default:
		reason = FinishOther
	}
	return FinishReason{Reason: reason, Raw: raw}
}

func (a *GeminiAdapter) parseErrorResponse(status int, headers http.Header, respBody []byte) error {
	retryAfter := ParseRetryAfter(headers)
	var errResp geminiErrorResponse
	if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error.Message == "" {
		return ErrorFromStatusCode(status, fmt.Sprintf("HTTP %d (unparseable body)", status), "gemini", "", json.RawMessage(respBody), retryAfter)
	}
	return ErrorFromStatusCode(status, errResp.Error.Message, "gemini", errResp.Error.Status, json.RawMessage(respBody), retryAfter)
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata"`
	ModelVersion  string            `json:"modelVersion"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

var _ ProviderAdapter = (*GeminiAdapter)(nil)
