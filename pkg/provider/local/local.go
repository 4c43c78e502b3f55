// Package local provides an adapter for self-hosted OpenAI-compatible
// servers such as vLLM, LiteLLM, or Ollama. The base URL and model list come
// from configuration and the API key is optional.
package local

import (
	"errors"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/provider/openaicompat"
)

// Config configures the local adapter.
type Config struct {
	// BaseURL is the server's API root, e.g. "http://localhost:8000/v1".
	BaseURL string

	// Models lists the models the server exposes. At least one is required.
	Models []api.ModelDescriptor
}

// New creates the local adapter.
func New(cfg Config) (*openaicompat.Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("local: BaseURL is required")
	}
	if len(cfg.Models) == 0 {
		return nil, errors.New("local: at least one model is required")
	}
	return openaicompat.New(openaicompat.Config{
		ID:          api.ProviderLocal,
		BaseURL:     cfg.BaseURL,
		Models:      cfg.Models,
		KeyOptional: true,
	})
}
