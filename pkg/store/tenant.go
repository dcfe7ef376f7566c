package store

import "context"

// tenantKey is a private type for the tenant context key, preventing
// collisions with other packages.
type tenantKey struct{}

// SetTenant injects a tenant (client) identifier into the context.
func SetTenant(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, clientID)
}

// GetTenant extracts the tenant identifier from the context.
// Returns an empty string if no tenant is set.
func GetTenant(ctx context.Context) string {
	if v, ok := ctx.Value(tenantKey{}).(string); ok {
		return v
	}
	return ""
}
