package auth

// Method identifies which credential type produced an Identity.
type Method string

const (
	MethodAPIKey    Method = "api_key"
	MethodJWT       Method = "jwt"
	MethodX402      Method = "x402"
	MethodAnonymous Method = "anonymous"
)

// Scope constants with special meaning.
const (
	// ScopeAll grants every capability within the identity's own client.
	ScopeAll = "all"

	// ScopeAdmin additionally grants cross-tenant access.
	ScopeAdmin = "admin"
)

// Identity is the unified, request-scoped result of authentication.
// It is never persisted.
type Identity struct {
	// ClientID is the tenant this identity belongs to.
	ClientID string

	// ClientName is the tenant's display name.
	ClientName string

	// AuthMethod records which provider produced this identity.
	AuthMethod Method

	// Scopes lists the capability strings granted.
	Scopes []string

	// API key specific fields.
	APIKeyID   string
	APIKeyName string

	// JWT specific fields.
	Subject string
	Email   string
	Issuer  string

	// x402 specific fields. Always lower-cased.
	WalletAddress string
}

// HasScope reports whether the identity holds the given scope.
// The "all" scope satisfies any scope check.
func (id *Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == ScopeAll || s == scope {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the identity holds the "admin" scope, which
// grants cross-tenant access. "all" does not imply "admin".
func (id *Identity) IsAdmin() bool {
	for _, s := range id.Scopes {
		if s == ScopeAdmin {
			return true
		}
	}
	return false
}

// CanAccessClient reports whether the identity may access resources
// belonging to the target client.
func (id *Identity) CanAccessClient(targetClientID string) bool {
	return id.IsAdmin() || id.ClientID == targetClientID
}

// EffectiveClientID resolves the client filter for list operations.
// Admins get the requested filter verbatim, including nil, which means
// "no filter, see all tenants". Non-admins are always scoped to their own
// client, regardless of what they requested.
func (id *Identity) EffectiveClientID(requested *string) *string {
	if id.IsAdmin() {
		return requested
	}
	own := id.ClientID
	return &own
}

// Anonymous returns the fixed identity used when anonymous access is
// allowed (development/test escape hatch).
func Anonymous() *Identity {
	return &Identity{
		ClientID:   "anonymous",
		ClientName: "Anonymous",
		AuthMethod: MethodAnonymous,
		Scopes:     []string{ScopeAll},
	}
}
