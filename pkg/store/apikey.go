package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// APIKey is a persisted bearer secret. Only the SHA-256 hash of the raw
// secret is stored; the raw value is returned to the caller exactly once,
// at creation.
type APIKey struct {
	// KeyID is the opaque, generated identifier ("key_" prefix).
	KeyID string

	// HashedSecret is the hex-encoded SHA-256 of the raw secret. Unique.
	HashedSecret string

	// ClientID is the owning client.
	ClientID string

	// Name is the human-readable label for the key.
	Name string

	// Scopes are the capability strings granted to bearers of this key.
	Scopes []string

	CreatedAt time.Time
	LastUsed  *time.Time

	// IsActive is false after revocation. Revoked keys never validate.
	IsActive bool
}

// NewAPIKey holds the caller-supplied fields for key creation.
type NewAPIKey struct {
	ClientID string
	Name     string
	Scopes   []string
}

// HashSecret returns the hex-encoded SHA-256 hash of a raw API key secret.
// All backends index keys by this value so validation is a hash lookup,
// never a scan.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// APIKeyStore persists hashed API keys.
type APIKeyStore interface {
	// CreateKey creates a new key and returns it together with the raw
	// secret. The raw secret is not persisted and cannot be recovered.
	CreateKey(ctx context.Context, p NewAPIKey) (*APIKey, string, error)

	// ValidateSecret looks up an active key by the hash of the raw secret.
	// Returns ErrNotFound for unknown or revoked keys.
	ValidateSecret(ctx context.Context, rawSecret string) (*APIKey, error)

	// GetKey returns the key with the given ID, active or not.
	GetKey(ctx context.Context, keyID string) (*APIKey, error)

	// ListKeys returns keys ordered by creation time, newest first.
	// An empty clientID lists keys for all clients.
	ListKeys(ctx context.Context, clientID string) ([]*APIKey, error)

	// RevokeKey deactivates a key. Takes effect immediately: the key fails
	// validation on the next request.
	RevokeKey(ctx context.Context, keyID string) error

	// TouchLastUsed records that the key was just used. Best-effort:
	// callers on the authentication path ignore the returned error.
	TouchLastUsed(ctx context.Context, keyID string) error
}
