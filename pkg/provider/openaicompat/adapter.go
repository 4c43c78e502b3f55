package openaicompat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/provider"
)

// Config configures an Adapter for one vendor.
type Config struct {
	// ID is the provider this adapter registers as.
	ID api.ProviderID

	// BaseURL includes the API version path, e.g. "https://api.openai.com/v1".
	BaseURL string

	// Models is the catalog served by this adapter.
	Models []api.ModelDescriptor

	// Reasoning reports whether a model ID belongs to a reasoning family that
	// takes max_completion_tokens and rejects temperature. Nil means none do.
	Reasoning func(modelID string) bool

	// SystemRole overrides the role of the instruction message for a model.
	// Nil means "system".
	SystemRole func(modelID string) string

	// KeyOptional allows requests without an API key (local servers).
	KeyOptional bool
}

// Adapter speaks the Chat Completions dialect.
type Adapter struct {
	cfg Config
}

var _ provider.Adapter = (*Adapter)(nil)

// New creates an Adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.ID == "" {
		return nil, errors.New("openaicompat: ID is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("openaicompat: %s: BaseURL is required", cfg.ID)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Models = slices.Clone(cfg.Models)
	return &Adapter{cfg: cfg}, nil
}

// ID returns the configured provider ID.
func (a *Adapter) ID() api.ProviderID {
	return a.cfg.ID
}

// Models returns the catalog.
func (a *Adapter) Models() []api.ModelDescriptor {
	return slices.Clone(a.cfg.Models)
}

// SupportsStreaming reports the model's streaming flag.
func (a *Adapter) SupportsStreaming(model api.ModelDescriptor) bool {
	return model.SupportsStreaming
}

// IsReasoning reports whether modelID is treated as a reasoning model.
func (a *Adapter) IsReasoning(modelID string) bool {
	return a.cfg.Reasoning != nil && a.cfg.Reasoning(modelID)
}

// BuildRequest renders a POST to {BaseURL}/chat/completions with bearer auth.
func (a *Adapter) BuildRequest(mctx api.MoveRequestContext, model api.ModelDescriptor) (*provider.WireRequest, error) {
	if model.ID == "" || (!a.cfg.KeyOptional && mctx.APIKey == "") {
		return nil, provider.RequireCredentials(a.cfg.ID, mctx, model)
	}

	systemRole := "system"
	if a.cfg.SystemRole != nil {
		systemRole = a.cfg.SystemRole(model.ID)
	}

	stream := mctx.Streaming && a.SupportsStreaming(model)
	req := ChatCompletionRequest{
		Model: model.ID,
		Messages: []ChatMessage{
			{Role: systemRole, Content: provider.SystemInstruction},
			{Role: "user", Content: provider.UserPrompt(mctx)},
		},
		Stream: stream,
	}

	if limit := provider.TokenLimit(mctx, model); limit > 0 {
		if a.IsReasoning(model.ID) {
			req.MaxCompletionTokens = &limit
		} else {
			req.MaxTokens = &limit
		}
	}
	if !a.IsReasoning(model.ID) {
		temp := mctx.Temperature
		req.Temperature = &temp
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if mctx.APIKey != "" {
		header.Set("Authorization", "Bearer "+mctx.APIKey)
	}
	if stream {
		header.Set("Accept", "text/event-stream")
	}

	return &provider.WireRequest{
		Method: http.MethodPost,
		URL:    a.cfg.BaseURL + "/chat/completions",
		Header: header,
		Body:   body,
		Stream: stream,
	}, nil
}

// ParseResponse decodes a Chat Completions body using choices[0].
func (a *Adapter) ParseResponse(body []byte) (api.CanonicalResponse, error) {
	return ParseResponse(body)
}

// DecodeStreamEvent decodes one Chat Completions chunk.
func (a *Adapter) DecodeStreamEvent(data []byte) (provider.StreamDelta, error) {
	return DecodeChunk(data)
}

// ErrorMessage extracts error.message from a Chat Completions error body.
func (a *Adapter) ErrorMessage(body []byte) string {
	return ExtractErrorMessage(body)
}
