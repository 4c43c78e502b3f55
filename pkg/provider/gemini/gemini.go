// Package gemini provides the Google Gemini adapter.
//
// Gemini differs from the chat-style vendors in three ways: the API key is
// passed as the "key" query parameter, the body uses contents/parts with a
// separate systemInstruction, and sampling lives under generationConfig.
// Streaming uses :streamGenerateContent with alt=sse and ends at EOF.
package gemini

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/provider"
)

// DefaultBaseURL is the public Generative Language API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Models is the built-in catalog.
var Models = []api.ModelDescriptor{
	{ID: "gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash", MaxTokenCeiling: 8192, SupportsStreaming: true},
	{ID: "gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash", MaxTokenCeiling: 65536, SupportsStreaming: true, Reasoning: true},
	{ID: "gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro", MaxTokenCeiling: 65536, SupportsStreaming: true, Reasoning: true},
}

// Config configures the Gemini adapter.
type Config struct {
	BaseURL     string
	ExtraModels []api.ModelDescriptor
}

// Adapter speaks the Gemini generateContent dialect.
type Adapter struct {
	baseURL string
	models  []api.ModelDescriptor
}

var _ provider.Adapter = (*Adapter)(nil)

// New creates the Gemini adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		models:  append(slices.Clone(Models), cfg.ExtraModels...),
	}, nil
}

func (a *Adapter) ID() api.ProviderID { return api.ProviderGemini }

func (a *Adapter) Models() []api.ModelDescriptor { return slices.Clone(a.models) }

func (a *Adapter) SupportsStreaming(model api.ModelDescriptor) bool { return model.SupportsStreaming }

// BuildRequest renders a generateContent (or streamGenerateContent) call.
func (a *Adapter) BuildRequest(mctx api.MoveRequestContext, model api.ModelDescriptor) (*provider.WireRequest, error) {
	if err := provider.RequireCredentials(api.ProviderGemini, mctx, model); err != nil {
		return nil, err
	}

	temp := mctx.Temperature
	req := generateContentRequest{
		SystemInstruction: &content{Parts: []part{{Text: provider.SystemInstruction}}},
		Contents: []content{
			{Role: "user", Parts: []part{{Text: provider.UserPrompt(mctx)}}},
		},
		GenerationConfig: generationConfig{Temperature: &temp},
	}
	if limit := provider.TokenLimit(mctx, model); limit > 0 {
		req.GenerationConfig.MaxOutputTokens = &limit
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	stream := mctx.Streaming && a.SupportsStreaming(model)
	method := "generateContent"
	query := url.Values{}
	query.Set("key", mctx.APIKey)
	if stream {
		method = "streamGenerateContent"
		query.Set("alt", "sse")
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if stream {
		header.Set("Accept", "text/event-stream")
	}

	return &provider.WireRequest{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/models/%s:%s?%s", a.baseURL, url.PathEscape(model.ID), method, query.Encode()),
		Header: header,
		Body:   body,
		Stream: stream,
	}, nil
}

// ParseResponse decodes a buffered generateContent body.
func (a *Adapter) ParseResponse(body []byte) (api.CanonicalResponse, error) {
	var resp generateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return api.CanonicalResponse{}, api.NewMalformedResponseError("decode gemini response", err)
	}
	if err := responseError(&resp); err != nil {
		return api.CanonicalResponse{}, err
	}
	if len(resp.Candidates) == 0 {
		return api.CanonicalResponse{}, api.NewMalformedResponseError("response has no candidates", nil)
	}

	out := collect(resp.Candidates[0].Content.Parts)
	if strings.TrimSpace(out.Text) == "" && strings.TrimSpace(out.Reasoning) == "" {
		return out, api.NewMalformedResponseError(
			fmt.Sprintf("empty content (finishReason %q)", resp.Candidates[0].FinishReason), nil)
	}
	return out, nil
}

// DecodeStreamEvent decodes one streamed generateContentResponse.
func (a *Adapter) DecodeStreamEvent(data []byte) (provider.StreamDelta, error) {
	var resp generateContentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return provider.StreamDelta{}, api.NewMalformedResponseError("decode gemini chunk", err)
	}
	if err := responseError(&resp); err != nil {
		return provider.StreamDelta{}, err
	}
	if len(resp.Candidates) == 0 {
		return provider.StreamDelta{}, nil
	}
	c := collect(resp.Candidates[0].Content.Parts)
	return provider.StreamDelta{Text: c.Text, Reasoning: c.Reasoning}, nil
}

// ErrorMessage extracts error.message from a Gemini error body.
func (a *Adapter) ErrorMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		return e.Error.Message
	}
	return ""
}

func responseError(resp *generateContentResponse) error {
	if resp.Error != nil && resp.Error.Message != "" {
		return api.NewAPIError(http.StatusOK, resp.Error.Message)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return api.NewMalformedResponseError("prompt blocked: "+resp.PromptFeedback.BlockReason, nil)
	}
	return nil
}

func collect(parts []part) api.CanonicalResponse {
	var text, reasoning strings.Builder
	for _, p := range parts {
		if p.Thought {
			reasoning.WriteString(p.Text)
		} else {
			text.WriteString(p.Text)
		}
	}
	return api.CanonicalResponse{Text: text.String(), Reasoning: reasoning.String()}
}
