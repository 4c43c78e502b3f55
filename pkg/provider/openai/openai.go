// Package openai provides the OpenAI adapter. Chat models use the shared
// Chat Completions dialect; the o-series and gpt-5 reasoning families are
// detected by model-ID prefix and get max_completion_tokens, a developer
// instruction role, and no temperature.
package openai

import (
	"strings"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/provider/openaicompat"
)

// DefaultBaseURL is the public OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// reasoningPrefixes identify reasoning model families.
var reasoningPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

// Models is the built-in catalog.
var Models = []api.ModelDescriptor{
	{ID: "gpt-4o", DisplayName: "GPT-4o", MaxTokenCeiling: 16384, SupportsStreaming: true},
	{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", MaxTokenCeiling: 16384, SupportsStreaming: true},
	{ID: "gpt-4.1", DisplayName: "GPT-4.1", MaxTokenCeiling: 32768, SupportsStreaming: true},
	{ID: "o3-mini", DisplayName: "o3-mini", MaxTokenCeiling: 100000, SupportsStreaming: true, Reasoning: true},
	{ID: "o4-mini", DisplayName: "o4-mini", MaxTokenCeiling: 100000, SupportsStreaming: true, Reasoning: true},
	{ID: "gpt-5", DisplayName: "GPT-5", MaxTokenCeiling: 128000, SupportsStreaming: true, Reasoning: true},
}

// Config configures the OpenAI adapter.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// ExtraModels are appended to the built-in catalog.
	ExtraModels []api.ModelDescriptor
}

// IsReasoningModel reports whether modelID belongs to a reasoning family.
func IsReasoningModel(modelID string) bool {
	id := strings.ToLower(modelID)
	for _, p := range reasoningPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// New creates the OpenAI adapter.
func New(cfg Config) (*openaicompat.Adapter, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return openaicompat.New(openaicompat.Config{
		ID:        api.ProviderOpenAI,
		BaseURL:   cfg.BaseURL,
		Models:    append(append([]api.ModelDescriptor{}, Models...), cfg.ExtraModels...),
		Reasoning: IsReasoningModel,
		SystemRole: func(modelID string) string {
			if IsReasoningModel(modelID) {
				return "developer"
			}
			return "system"
		},
	})
}
