// ABOUTME: OpenAI Chat Completions adapter built on the official openai-go SDK.
// ABOUTME: A custom base URL makes it work with OpenAI-compatible services as well.

package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is used when a request does not name a model.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIAdapter implements ProviderAdapter over the Chat Completions endpoint.
type OpenAIAdapter struct {
	client openai.Client
}

// NewOpenAIAdapter creates an adapter. An empty baseURL uses OpenAI's API. Retries are
// disabled in the SDK so RetryPolicy alone decides them.
func NewOpenAIAdapter(apiKey, baseURL string, timeout AdapterTimeout) *OpenAIAdapter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(newHTTPClient(timeout)),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{client: openai.NewClient(opts...)}
}

// Name returns "openai".
func (a *OpenAIAdapter) Name() string { return "openai" }

// Close releases any resources held by the adapter.
func (a *OpenAIAdapter) Close() error { return nil }

// Complete sends a chat completion request.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	params := convertOpenAIRequest(req)
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, convertOpenAIError(ctx, err)
	}
	return convertOpenAIResponse(resp), nil
}

func convertOpenAIRequest(req Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	params := openai.ChatCompletionNewParams{Model: model}
	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.JSONOutput {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	params.Messages = messages
	return params
}

func convertOpenAIResponse(resp *openai.ChatCompletion) *Response {
	result := &Response{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: "openai",
		Message:  Message{Role: RoleAssistant},
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) == 0 {
		return result
	}
	choice := resp.Choices[0]
	result.Message.Content = choice.Message.Content

	raw := string(choice.FinishReason)
	switch raw {
	case "stop":
		result.FinishReason = FinishReason{Reason: FinishStop, Raw: raw}
	case "length":
		result.FinishReason = FinishReason{Reason: FinishLength, Raw: raw}
	case "content_filter":
		result.FinishReason = FinishReason{Reason: FinishContentFilter, Raw: raw}
	default:
		result.FinishReason = FinishReason{Reason: FinishOther, Raw: raw}
	}
	return result
}

// convertOpenAIError maps SDK errors onto ProviderError / NetworkError.
func convertOpenAIError(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var headers http.Header
		if apiErr.Response != nil {
			headers = apiErr.Response.Header
		}
		return ErrorFromStatusCode(apiErr.StatusCode, apiErr.Message, "openai", apiErr.Code, nil, ParseRetryAfter(headers))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &NetworkError{Provider: "openai", Cause: err}
}

var _ ProviderAdapter = (*OpenAIAdapter)(nil)
