package transport

import (
	"context"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/provider"
)

// Router sends each request through the client registered for the provider
// whose codec rendered it. Providers without their own client use Default,
// which must be set.
type Router struct {
	Default *Client
	Clients map[api.ProviderID]*Client
}

// Execute implements the engine's executor on top of per-provider clients.
func (r *Router) Execute(ctx context.Context, req *provider.WireRequest, codec Codec, onUpdate UpdateFunc) (api.CanonicalResponse, error) {
	return r.client(codec).Execute(ctx, req, codec, onUpdate)
}

func (r *Router) client(codec Codec) *Client {
	if id, ok := codec.(interface{ ID() api.ProviderID }); ok {
		if c, ok := r.Clients[id.ID()]; ok {
			return c
		}
	}
	return r.Default
}
