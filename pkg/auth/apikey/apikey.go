// Package apikey provides the API key credential provider. It validates
// the X-API-Key header against the hashed secrets in the key store: the
// presented secret is hashed and looked up, never compared by scan.
package apikey

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/precision-bom/precisionBOM/pkg/auth"
	"github.com/precision-bom/precisionBOM/pkg/store"
)

// Provider validates API key secrets against the key store.
type Provider struct {
	keys    store.APIKeyStore
	clients store.ClientStore
}

// Ensure Provider implements the chain contract at compile time.
var _ auth.Provider = (*Provider)(nil)

// New creates an API key provider backed by the given stores.
func New(keys store.APIKeyStore, clients store.ClientStore) *Provider {
	return &Provider{keys: keys, clients: clients}
}

// Name identifies the provider for logging and scheme advertisement.
func (p *Provider) Name() string { return "api_key" }

// CanHandle reports whether the request carries an X-API-Key header.
func (p *Provider) CanHandle(r *http.Request) bool {
	return r.Header.Get(auth.HeaderAPIKey) != ""
}

// Authenticate hashes the presented secret, resolves the key and its
// owning client, and returns the key-scoped identity. The last-used
// timestamp update is best-effort and never fails the authentication path.
func (p *Provider) Authenticate(ctx context.Context, r *http.Request) (*auth.Identity, error) {
	rawSecret := r.Header.Get(auth.HeaderAPIKey)
	if rawSecret == "" {
		return nil, auth.NewError(auth.KindMissingCredentials, "missing API key")
	}

	key, err := p.keys.ValidateSecret(ctx, rawSecret)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, auth.NewError(auth.KindInvalidAPIKey, "invalid API key")
		}
		return nil, auth.WrapError(auth.KindInvalidAPIKey, "validating API key", err)
	}

	client, err := p.clients.GetClient(ctx, key.ClientID)
	if err != nil || !client.IsActive {
		return nil, auth.NewError(auth.KindInactiveClient, "client inactive or not found")
	}

	if err := p.keys.TouchLastUsed(ctx, key.KeyID); err != nil {
		slog.Warn("updating api key last_used failed", "key_id", key.KeyID, "error", err)
	}

	return &auth.Identity{
		ClientID:   client.ClientID,
		ClientName: client.Name,
		AuthMethod: auth.MethodAPIKey,
		Scopes:     key.Scopes,
		APIKeyID:   key.KeyID,
		APIKeyName: key.Name,
	}, nil
}
