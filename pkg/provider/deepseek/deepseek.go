// Package deepseek provides the DeepSeek adapter. DeepSeek speaks the Chat
// Completions dialect; deepseek-reasoner additionally streams its chain of
// thought in delta.reasoning_content, which surfaces as canonical reasoning.
package deepseek

import (
	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/provider/openaicompat"
)

// DefaultBaseURL is the public DeepSeek API endpoint.
const DefaultBaseURL = "https://api.deepseek.com/v1"

// Models is the built-in catalog.
var Models = []api.ModelDescriptor{
	{ID: "deepseek-chat", DisplayName: "DeepSeek V3", MaxTokenCeiling: 8192, SupportsStreaming: true},
	{ID: "deepseek-reasoner", DisplayName: "DeepSeek R1", MaxTokenCeiling: 32768, SupportsStreaming: true, Reasoning: true},
}

// Config configures the DeepSeek adapter.
type Config struct {
	BaseURL     string
	ExtraModels []api.ModelDescriptor
}

// New creates the DeepSeek adapter.
func New(cfg Config) (*openaicompat.Adapter, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return openaicompat.New(openaicompat.Config{
		ID:      api.ProviderDeepSeek,
		BaseURL: cfg.BaseURL,
		Models:  append(append([]api.ModelDescriptor{}, Models...), cfg.ExtraModels...),
	})
}
