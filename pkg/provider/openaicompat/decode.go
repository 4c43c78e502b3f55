package openaicompat

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/provider"
)

// ParseResponse converts a ChatCompletionResponse body into a canonical
// response. Only choices[0] is used.
func ParseResponse(body []byte) (api.CanonicalResponse, error) {
	var resp ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return api.CanonicalResponse{}, api.NewMalformedResponseError("decode chat completion", err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return api.CanonicalResponse{}, api.NewAPIError(http.StatusOK, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return api.CanonicalResponse{}, api.NewMalformedResponseError("response has no choices", nil)
	}

	choice := resp.Choices[0]
	out := api.CanonicalResponse{Text: ExtractContentString(choice.Message.Content)}
	if choice.Message.ReasoningContent != nil {
		out.Reasoning = *choice.Message.ReasoningContent
	}

	if strings.TrimSpace(out.Text) == "" && strings.TrimSpace(out.Reasoning) == "" {
		return out, api.NewMalformedResponseError(
			fmt.Sprintf("empty content (finish_reason %q)", choice.FinishReason), nil)
	}
	return out, nil
}

// DecodeChunk converts one SSE chunk into a stream delta.
func DecodeChunk(data []byte) (provider.StreamDelta, error) {
	var chunk ChatCompletionChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return provider.StreamDelta{}, api.NewMalformedResponseError("decode chat chunk", err)
	}
	if chunk.Error != nil && chunk.Error.Message != "" {
		return provider.StreamDelta{}, api.NewAPIError(http.StatusOK, chunk.Error.Message)
	}
	if len(chunk.Choices) == 0 {
		// Usage-only chunk.
		return provider.StreamDelta{}, nil
	}

	delta := chunk.Choices[0].Delta
	var out provider.StreamDelta
	if delta.Content != nil {
		out.Text = *delta.Content
	}
	if delta.ReasoningContent != nil {
		out.Reasoning = *delta.ReasoningContent
	}
	return out, nil
}

// ExtractErrorMessage returns error.message from a Chat Completions error
// body, or "" if the body is not one.
func ExtractErrorMessage(body []byte) string {
	var errResp ChatErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		return errResp.Error.Message
	}
	return ""
}

// ExtractContentString returns the message content as plain text. Content
// may be a string or an array of {"type":"text","text":...} parts.
func ExtractContentString(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var b strings.Builder
		for _, part := range v {
			m, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				b.WriteString(text)
			}
		}
		return b.String()
	default:
		return ""
	}
}
