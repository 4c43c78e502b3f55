package auth

import "context"

type identityKey struct{}

// SetIdentity attaches the caller of a move request to ctx.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller the middleware admitted, or nil when
// authentication is off. Handlers use it to attribute resolutions.
func IdentityFromContext(ctx context.Context) *Identity {
	if v, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return v
	}
	return nil
}
