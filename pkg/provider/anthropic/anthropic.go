// Package anthropic provides the Anthropic Messages API adapter.
package anthropic

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/provider"
)

const (
	// DefaultBaseURL is the public Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com/v1"

	// APIVersion is sent as the anthropic-version header.
	APIVersion = "2023-06-01"

	// defaultMaxTokens is used when the context carries no budget;
	// the Messages API requires max_tokens.
	defaultMaxTokens = 1024
)

// Models is the built-in catalog.
var Models = []api.ModelDescriptor{
	{ID: "claude-3-5-haiku-latest", DisplayName: "Claude 3.5 Haiku", MaxTokenCeiling: 8192, SupportsStreaming: true},
	{ID: "claude-3-5-sonnet-latest", DisplayName: "Claude 3.5 Sonnet", MaxTokenCeiling: 8192, SupportsStreaming: true},
	{ID: "claude-sonnet-4-0", DisplayName: "Claude Sonnet 4", MaxTokenCeiling: 64000, SupportsStreaming: true},
}

// Config configures the Anthropic adapter.
type Config struct {
	BaseURL     string
	ExtraModels []api.ModelDescriptor
}

// Adapter speaks the Messages API.
type Adapter struct {
	baseURL string
	models  []api.ModelDescriptor
}

var _ provider.Adapter = (*Adapter)(nil)

// New creates the Anthropic adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		models:  append(slices.Clone(Models), cfg.ExtraModels...),
	}, nil
}

func (a *Adapter) ID() api.ProviderID { return api.ProviderAnthropic }

func (a *Adapter) Models() []api.ModelDescriptor { return slices.Clone(a.models) }

func (a *Adapter) SupportsStreaming(model api.ModelDescriptor) bool { return model.SupportsStreaming }

// BuildRequest renders a POST to {BaseURL}/messages.
func (a *Adapter) BuildRequest(mctx api.MoveRequestContext, model api.ModelDescriptor) (*provider.WireRequest, error) {
	if err := provider.RequireCredentials(api.ProviderAnthropic, mctx, model); err != nil {
		return nil, err
	}

	maxTokens := provider.TokenLimit(mctx, model)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temp := mctx.Temperature
	stream := mctx.Streaming && a.SupportsStreaming(model)

	body, err := json.Marshal(messagesRequest{
		Model:       model.ID,
		System:      provider.SystemInstruction,
		Messages:    []message{{Role: "user", Content: provider.UserPrompt(mctx)}},
		MaxTokens:   maxTokens,
		Temperature: &temp,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("x-api-key", mctx.APIKey)
	header.Set("anthropic-version", APIVersion)
	if stream {
		header.Set("Accept", "text/event-stream")
	}

	return &provider.WireRequest{
		Method: http.MethodPost,
		URL:    a.baseURL + "/messages",
		Header: header,
		Body:   body,
		Stream: stream,
	}, nil
}

// ParseResponse decodes a buffered Messages API body.
func (a *Adapter) ParseResponse(body []byte) (api.CanonicalResponse, error) {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return api.CanonicalResponse{}, api.NewMalformedResponseError("decode anthropic response", err)
	}
	if resp.Type == "error" && resp.Error != nil {
		return api.CanonicalResponse{}, vendorError(resp.Error)
	}

	var out api.CanonicalResponse
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Text += block.Text
		case "thinking":
			out.Reasoning += block.Thinking
		}
	}
	if strings.TrimSpace(out.Text) == "" && strings.TrimSpace(out.Reasoning) == "" {
		return out, api.NewMalformedResponseError(
			fmt.Sprintf("empty content (stop_reason %q)", resp.StopReason), nil)
	}
	return out, nil
}

// DecodeStreamEvent decodes one Messages API stream event. Only
// content_block_delta carries content; message_stop ends the stream.
func (a *Adapter) DecodeStreamEvent(data []byte) (provider.StreamDelta, error) {
	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return provider.StreamDelta{}, api.NewMalformedResponseError("decode anthropic event", err)
	}

	switch ev.Type {
	case "content_block_delta":
		if ev.Delta == nil {
			return provider.StreamDelta{}, nil
		}
		switch ev.Delta.Type {
		case "text_delta":
			return provider.StreamDelta{Text: ev.Delta.Text}, nil
		case "thinking_delta":
			return provider.StreamDelta{Reasoning: ev.Delta.Thinking}, nil
		}
	case "message_stop":
		return provider.StreamDelta{Done: true}, nil
	case "error":
		if ev.Error == nil {
			return provider.StreamDelta{}, api.NewUpstreamError(http.StatusOK, "stream error", nil)
		}
		return provider.StreamDelta{}, vendorError(ev.Error)
	}
	return provider.StreamDelta{}, nil
}

// vendorError maps an error object delivered with a 200 status by the
// error type Anthropic would have sent as an HTTP status.
func vendorError(e *errorObject) error {
	switch e.Type {
	case "overloaded_error":
		return api.NewUpstreamError(529, e.Message, nil)
	case "api_error":
		return api.NewUpstreamError(http.StatusInternalServerError, e.Message, nil)
	case "rate_limit_error":
		return api.NewRateLimitedError(http.StatusTooManyRequests, e.Message, 0)
	case "authentication_error":
		return api.NewAuthenticationError(http.StatusUnauthorized, e.Message)
	case "permission_error":
		return api.NewAuthenticationError(http.StatusForbidden, e.Message)
	}
	return api.NewAPIError(http.StatusOK, e.Message)
}

// ErrorMessage extracts error.message from a Messages API error body.
func (a *Adapter) ErrorMessage(body []byte) string {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != nil {
		return resp.Error.Message
	}
	return ""
}
