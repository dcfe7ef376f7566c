package store

import (
	"context"
	"strings"
	"time"
)

// Client is a tenant: an isolated customer/organization boundary.
// Most data and authorization in the system is scoped to one client.
type Client struct {
	// ClientID is the opaque, generated identifier ("cli_" prefix).
	ClientID string

	// Name is the human-readable display name.
	Name string

	// Slug is the unique, human-chosen short name.
	Slug string

	// IsActive is false for soft-deleted clients. Inactive clients are
	// invisible to issuer/audience/wallet lookups.
	IsActive bool

	// OIDCIssuer, when set, binds JWTs from this issuer to the client.
	OIDCIssuer string

	// OIDCAudience, when set, binds JWTs with this audience to the client
	// (used for shared issuers that serve many tenants).
	OIDCAudience string

	// WalletAddress is the lower-cased crypto address that payments from
	// this client arrive from. Empty for non-payment clients.
	WalletAddress string

	// Settings carries opaque per-client key/value settings. Ephemeral
	// clients created by the payment provider have Settings["ephemeral"]="true".
	Settings map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ephemeral reports whether this client was auto-created by the payment
// provider on first payment from a previously unseen wallet.
func (c *Client) Ephemeral() bool {
	return c.Settings["ephemeral"] == "true"
}

// NewClient holds the caller-supplied fields for client creation.
type NewClient struct {
	Name          string
	Slug          string
	OIDCIssuer    string
	OIDCAudience  string
	WalletAddress string
	Settings      map[string]string
}

// normalize lower-cases the wallet address so lookups are case-insensitive.
func (p *NewClient) normalize() {
	p.WalletAddress = strings.ToLower(p.WalletAddress)
}

// ClientStore persists clients. Lookups by issuer, audience, and wallet
// return only active clients; GetClient and GetClientBySlug return inactive
// clients too so operators can inspect them.
type ClientStore interface {
	// CreateClient creates a new client. Returns ErrConflict when the slug
	// or wallet address is already taken. The create is atomic: two
	// concurrent creates for the same slug or wallet yield exactly one
	// client and one ErrConflict.
	CreateClient(ctx context.Context, p NewClient) (*Client, error)

	// GetClient returns the client with the given ID, active or not.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// GetClientBySlug returns the client with the given slug, active or not.
	GetClientBySlug(ctx context.Context, slug string) (*Client, error)

	// GetClientByOIDCIssuer returns the active client bound to the issuer.
	GetClientByOIDCIssuer(ctx context.Context, issuer string) (*Client, error)

	// GetClientByOIDCAudience returns the active client bound to the audience.
	GetClientByOIDCAudience(ctx context.Context, audience string) (*Client, error)

	// GetClientByWallet returns the active client owning the wallet address.
	// The address is matched case-insensitively.
	GetClientByWallet(ctx context.Context, walletAddress string) (*Client, error)

	// ListClients returns clients ordered by creation time, newest first.
	ListClients(ctx context.Context, includeInactive bool) ([]*Client, error)

	// DeactivateClient soft-deletes a client. Clients are never hard-deleted.
	DeactivateClient(ctx context.Context, clientID string) error
}
