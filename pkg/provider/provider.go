package provider

import (
	"net/http"

	"github.com/rhuss/schach/pkg/api"
)

// Adapter translates between the engine's canonical types and one vendor's
// wire dialect.
//
// Implementations must be safe for concurrent use by multiple goroutines and
// must not keep per-request state: BuildRequest called twice with the same
// inputs yields structurally identical requests.
type Adapter interface {
	// ID returns the provider this adapter speaks for.
	ID() api.ProviderID

	// Models returns the adapter's model catalog.
	Models() []api.ModelDescriptor

	// BuildRequest renders a vendor request for one attempt. It fails with a
	// configuration error when the API key or model ID is missing.
	BuildRequest(mctx api.MoveRequestContext, model api.ModelDescriptor) (*WireRequest, error)

	// ParseResponse decodes a complete (non-streaming) 2xx body.
	ParseResponse(body []byte) (api.CanonicalResponse, error)

	// DecodeStreamEvent decodes the payload of one SSE data line.
	DecodeStreamEvent(data []byte) (StreamDelta, error)

	// ErrorMessage extracts the vendor's error message from an error body,
	// or returns "" when the body carries no recognizable error object.
	ErrorMessage(body []byte) string

	// SupportsStreaming reports whether the model can be streamed.
	SupportsStreaming(model api.ModelDescriptor) bool
}

// WireRequest is a fully rendered HTTP request. It is plain data so that
// adapters stay free of I/O and requests can be compared in tests.
type WireRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte

	// Stream marks requests that expect a server-sent event response.
	Stream bool
}

// StreamDelta is the decoded content of one streamed event.
type StreamDelta struct {
	Text      string
	Reasoning string

	// Done marks a vendor-specific terminal event.
	Done bool
}

// Empty reports whether the delta carries no content.
func (d StreamDelta) Empty() bool {
	return d.Text == "" && d.Reasoning == ""
}

// RequireCredentials returns a configuration error when the API key or the
// model ID is missing.
func RequireCredentials(id api.ProviderID, mctx api.MoveRequestContext, model api.ModelDescriptor) error {
	if model.ID == "" {
		return api.NewConfigurationError("%s: model id is required", id)
	}
	if mctx.APIKey == "" {
		return api.NewConfigurationError("%s: api key is required", id)
	}
	return nil
}

// TokenLimit clamps the context's token budget to the model's ceiling.
func TokenLimit(mctx api.MoveRequestContext, model api.ModelDescriptor) int {
	n := mctx.TokenBudget
	if model.MaxTokenCeiling > 0 && n > model.MaxTokenCeiling {
		n = model.MaxTokenCeiling
	}
	return n
}

// FindModel looks up modelID in a catalog.
func FindModel(models []api.ModelDescriptor, modelID string) (api.ModelDescriptor, bool) {
	for _, m := range models {
		if m.ID == modelID {
			return m, true
		}
	}
	return api.ModelDescriptor{}, false
}
