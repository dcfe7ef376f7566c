// Package jwt provides the JWT/OIDC credential provider. It validates
// RSA-signed bearer tokens against each issuer's JWKS, resolving the
// owning tenant by OIDC issuer or, for shared issuers on the global
// allow-list, by audience.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/precision-bom/precisionBOM/pkg/auth"
	"github.com/precision-bom/precisionBOM/pkg/store"
)

// Config holds the JWT provider configuration.
type Config struct {
	// AllowedIssuers is the global issuer allow-list. An issuer on this
	// list may serve many tenants; the tenant is then resolved by the
	// token's audience instead of the issuer.
	AllowedIssuers []string

	// DefaultAudience is the audience verified when the resolved client
	// has no audience of its own.
	DefaultAudience string

	// CacheTTL controls how long JWKS keys are cached. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.CacheTTL == 0 {
		c.CacheTTL = 1 * time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Provider validates JWT bearer tokens against per-issuer JWKS endpoints.
type Provider struct {
	config  Config
	clients store.ClientStore
	cache   *keyCache
}

// Ensure Provider implements the chain contract at compile time.
var _ auth.Provider = (*Provider)(nil)

// New creates a JWT provider with the given configuration.
func New(cfg Config, clients store.ClientStore) *Provider {
	cfg.applyDefaults()
	return &Provider{
		config:  cfg,
		clients: clients,
		cache:   newKeyCache(cfg.CacheTTL, cfg.HTTPClient),
	}
}

// Name identifies the provider for logging and scheme advertisement.
func (p *Provider) Name() string { return "jwt" }

// CanHandle reports whether the request carries a bearer token.
func (p *Provider) CanHandle(r *http.Request) bool {
	return bearerToken(r) != ""
}

// bearerToken extracts the token from the Authorization header, or "".
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Authenticate validates the bearer token and returns the tenant-scoped
// identity.
//
// The issuer claim is read before verification so the owning tenant (and
// thus the expected audience and key material) can be resolved; the
// signature, issuer, and audience are then verified against the issuer's
// JWKS. A signature failure invalidates the issuer's cached keys and
// retries once, so key rotation does not lock tenants out until the
// cache TTL expires.
func (p *Provider) Authenticate(ctx context.Context, r *http.Request) (*auth.Identity, error) {
	tokenStr := bearerToken(r)
	if tokenStr == "" {
		return nil, auth.NewError(auth.KindMissingCredentials, "missing bearer token")
	}

	// Decode without verifying the signature to read iss/aud only.
	unverified := jwtlib.MapClaims{}
	parser := jwtlib.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, unverified); err != nil {
		return nil, auth.WrapError(auth.KindTokenInvalidSignature, "malformed token", err)
	}

	issuer := claimString(unverified, "iss")
	if issuer == "" {
		return nil, auth.NewError(auth.KindMissingIssuer, "token missing issuer")
	}

	client, err := p.resolveClient(ctx, issuer, unverified)
	if err != nil {
		return nil, err
	}

	audience := client.OIDCAudience
	if audience == "" {
		audience = p.config.DefaultAudience
	}

	claims, err := p.verify(ctx, tokenStr, issuer, audience)
	if err != nil {
		return nil, err
	}

	return &auth.Identity{
		ClientID:   client.ClientID,
		ClientName: client.Name,
		AuthMethod: auth.MethodJWT,
		Scopes:     extractScopes(claims),
		Subject:    claimString(claims, "sub"),
		Email:      claimString(claims, "email"),
		Issuer:     issuer,
	}, nil
}

// resolveClient finds the tenant a token belongs to. Dedicated issuers map
// straight to a client; issuers on the global allow-list serve many
// tenants, so the client is found by audience instead.
func (p *Provider) resolveClient(ctx context.Context, issuer string, claims jwtlib.MapClaims) (*store.Client, error) {
	client, err := p.clients.GetClientByOIDCIssuer(ctx, issuer)
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, auth.WrapError(auth.KindInactiveClient, "resolving client by issuer", err)
	}

	if !p.issuerAllowed(issuer) {
		return nil, auth.NewError(auth.KindUnknownIssuer, fmt.Sprintf("unknown token issuer: %s", issuer))
	}

	if audience := claimAudience(claims); audience != "" {
		client, err = p.clients.GetClientByOIDCAudience(ctx, audience)
		if err == nil {
			return client, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, auth.WrapError(auth.KindInactiveClient, "resolving client by audience", err)
		}
	}

	return nil, auth.NewError(auth.KindInactiveClient, "client not found or inactive")
}

func (p *Provider) issuerAllowed(issuer string) bool {
	for _, allowed := range p.config.AllowedIssuers {
		if allowed == issuer {
			return true
		}
	}
	return false
}

// verify checks the token's signature, issuer, and audience against the
// issuer's JWKS. On a signature failure the issuer's cached key set is
// invalidated and verification retried once.
func (p *Provider) verify(ctx context.Context, tokenStr, issuer, audience string) (jwtlib.MapClaims, error) {
	claims, err := p.parseVerified(ctx, tokenStr, issuer, audience)
	if err != nil && errors.Is(err, jwtlib.ErrTokenSignatureInvalid) {
		p.cache.invalidate(issuer)
		claims, err = p.parseVerified(ctx, tokenStr, issuer, audience)
	}
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, auth.WrapError(auth.KindTokenExpired, "token expired", err)
		}
		return nil, auth.WrapError(auth.KindTokenInvalidSignature, "invalid token", err)
	}
	return claims, nil
}

func (p *Provider) parseVerified(ctx context.Context, tokenStr, issuer, audience string) (jwtlib.MapClaims, error) {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwtlib.WithIssuer(issuer),
	}
	if audience != "" {
		opts = append(opts, jwtlib.WithAudience(audience))
	}

	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}

		key, fetchErr := p.cache.key(ctx, issuer, kid)
		if fetchErr != nil {
			return nil, fmt.Errorf("fetching JWKS key for kid %q: %w", kid, fetchErr)
		}

		return key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// claimString extracts a string claim, or "".
func claimString(claims jwtlib.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

// claimAudience extracts the aud claim, taking the first entry when the
// claim is a list.
func claimAudience(claims jwtlib.MapClaims) string {
	switch v := claims["aud"].(type) {
	case string:
		return v
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// extractScopes reads scopes from the claim layouts the supported OIDC
// providers emit, in order: a space-separated "scope" string (Auth0
// style), a "realm_access.roles" array (Keycloak style), and a custom
// "scopes" claim (list or space-separated string). A verified token with
// no recognizable scope claim gets full access within its own tenant.
func extractScopes(claims jwtlib.MapClaims) []string {
	if s, ok := claims["scope"].(string); ok {
		if parts := strings.Fields(s); len(parts) > 0 {
			return parts
		}
	}

	if realm, ok := claims["realm_access"].(map[string]interface{}); ok {
		if roles, ok := realm["roles"].([]interface{}); ok {
			if out := stringSlice(roles); len(out) > 0 {
				return out
			}
		}
	}

	switch v := claims["scopes"].(type) {
	case []interface{}:
		if out := stringSlice(v); len(out) > 0 {
			return out
		}
	case string:
		if parts := strings.Fields(v); len(parts) > 0 {
			return parts
		}
	}

	return []string{auth.ScopeAll}
}

func stringSlice(in []interface{}) []string {
	var out []string
	for _, item := range in {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
