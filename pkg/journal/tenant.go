package journal

import "context"

type tenantKey struct{}

// SetTenant scopes ctx to one tenant. The auth middleware calls it for
// identities that carry a tenant, so attempts written through ctx are owned
// by that tenant and attempts of other tenants stay hidden from it.
func SetTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// GetTenant returns the tenant that owns attempts recorded and read through
// ctx. An empty tenant sees every resolution, as the CLI and unauthenticated
// servers do.
func GetTenant(ctx context.Context) string {
	if v, ok := ctx.Value(tenantKey{}).(string); ok {
		return v
	}
	return ""
}
