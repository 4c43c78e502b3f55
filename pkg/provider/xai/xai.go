// Package xai provides the xAI (Grok) adapter on the Chat Completions dialect.
package xai

import (
	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/provider/openaicompat"
)

// DefaultBaseURL is the public xAI API endpoint.
const DefaultBaseURL = "https://api.x.ai/v1"

// Models is the built-in catalog.
var Models = []api.ModelDescriptor{
	{ID: "grok-3", DisplayName: "Grok 3", MaxTokenCeiling: 16384, SupportsStreaming: true},
	{ID: "grok-3-mini", DisplayName: "Grok 3 mini", MaxTokenCeiling: 16384, SupportsStreaming: true, Reasoning: true},
	{ID: "grok-4", DisplayName: "Grok 4", MaxTokenCeiling: 32768, SupportsStreaming: true, Reasoning: true},
}

// Config configures the xAI adapter.
type Config struct {
	BaseURL     string
	ExtraModels []api.ModelDescriptor
}

// New creates the xAI adapter.
func New(cfg Config) (*openaicompat.Adapter, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return openaicompat.New(openaicompat.Config{
		ID:      api.ProviderXAI,
		BaseURL: cfg.BaseURL,
		Models:  append(append([]api.ModelDescriptor{}, Models...), cfg.ExtraModels...),
	})
}
