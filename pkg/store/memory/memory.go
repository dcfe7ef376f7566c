// Package memory provides an in-memory implementation of the client and
// API key stores for testing and lightweight deployments. All data is lost
// when the process restarts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/precision-bom/precisionBOM/pkg/store"
)

// Store is an in-memory ClientStore and APIKeyStore. A single mutex guards
// both tables, so creates are atomic with respect to the uniqueness checks:
// concurrent creates for the same slug or wallet yield exactly one client.
type Store struct {
	mu      sync.RWMutex
	clients map[string]*store.Client // client_id -> client
	keys    map[string]*store.APIKey // key_id -> key
	byHash  map[string]string        // hashed_secret -> key_id
}

// Ensure Store implements both contracts at compile time.
var (
	_ store.ClientStore = (*Store)(nil)
	_ store.APIKeyStore = (*Store)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		clients: make(map[string]*store.Client),
		keys:    make(map[string]*store.APIKey),
		byHash:  make(map[string]string),
	}
}

// CreateClient creates a new client, enforcing slug and wallet uniqueness.
func (s *Store) CreateClient(_ context.Context, p store.NewClient) (*store.Client, error) {
	wallet := strings.ToLower(p.WalletAddress)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.clients {
		if c.Slug == p.Slug {
			return nil, store.ErrConflict
		}
		if wallet != "" && c.WalletAddress == wallet {
			return nil, store.ErrConflict
		}
	}

	now := time.Now().UTC()
	c := &store.Client{
		ClientID:      store.NewClientID(),
		Name:          p.Name,
		Slug:          p.Slug,
		IsActive:      true,
		OIDCIssuer:    p.OIDCIssuer,
		OIDCAudience:  p.OIDCAudience,
		WalletAddress: wallet,
		Settings:      copySettings(p.Settings),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.clients[c.ClientID] = c
	return cloneClient(c), nil
}

// GetClient returns the client with the given ID, active or not.
func (s *Store) GetClient(_ context.Context, clientID string) (*store.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[clientID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneClient(c), nil
}

// GetClientBySlug returns the client with the given slug, active or not.
func (s *Store) GetClientBySlug(_ context.Context, slug string) (*store.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.clients {
		if c.Slug == slug {
			return cloneClient(c), nil
		}
	}
	return nil, store.ErrNotFound
}

// GetClientByOIDCIssuer returns the active client bound to the issuer.
func (s *Store) GetClientByOIDCIssuer(_ context.Context, issuer string) (*store.Client, error) {
	return s.findActive(func(c *store.Client) bool {
		return c.OIDCIssuer != "" && c.OIDCIssuer == issuer
	})
}

// GetClientByOIDCAudience returns the active client bound to the audience.
func (s *Store) GetClientByOIDCAudience(_ context.Context, audience string) (*store.Client, error) {
	return s.findActive(func(c *store.Client) bool {
		return c.OIDCAudience != "" && c.OIDCAudience == audience
	})
}

// GetClientByWallet returns the active client owning the wallet address.
func (s *Store) GetClientByWallet(_ context.Context, walletAddress string) (*store.Client, error) {
	wallet := strings.ToLower(walletAddress)
	return s.findActive(func(c *store.Client) bool {
		return c.WalletAddress != "" && c.WalletAddress == wallet
	})
}

// ListClients returns clients ordered by creation time, newest first.
func (s *Store) ListClients(_ context.Context, includeInactive bool) ([]*store.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.Client
	for _, c := range s.clients {
		if !includeInactive && !c.IsActive {
			continue
		}
		out = append(out, cloneClient(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ClientID > out[j].ClientID
	})
	return out, nil
}

// DeactivateClient soft-deletes a client.
func (s *Store) DeactivateClient(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok {
		return store.ErrNotFound
	}
	c.IsActive = false
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// CreateKey creates a new API key and returns the raw secret exactly once.
func (s *Store) CreateKey(_ context.Context, p store.NewAPIKey) (*store.APIKey, string, error) {
	raw := store.NewSecret()
	hashed := store.HashSecret(raw)

	scopes := p.Scopes
	if len(scopes) == 0 {
		scopes = []string{"all"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byHash[hashed]; exists {
		return nil, "", store.ErrConflict
	}

	k := &store.APIKey{
		KeyID:        store.NewKeyID(),
		HashedSecret: hashed,
		ClientID:     p.ClientID,
		Name:         p.Name,
		Scopes:       append([]string(nil), scopes...),
		CreatedAt:    time.Now().UTC(),
		IsActive:     true,
	}
	s.keys[k.KeyID] = k
	s.byHash[hashed] = k.KeyID
	return cloneKey(k), raw, nil
}

// ValidateSecret looks up an active key by the hash of the raw secret.
func (s *Store) ValidateSecret(_ context.Context, rawSecret string) (*store.APIKey, error) {
	hashed := store.HashSecret(rawSecret)

	s.mu.RLock()
	defer s.mu.RUnlock()

	keyID, ok := s.byHash[hashed]
	if !ok {
		return nil, store.ErrNotFound
	}
	k := s.keys[keyID]
	if k == nil || !k.IsActive {
		return nil, store.ErrNotFound
	}
	return cloneKey(k), nil
}

// GetKey returns the key with the given ID, active or not.
func (s *Store) GetKey(_ context.Context, keyID string) (*store.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[keyID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneKey(k), nil
}

// ListKeys returns keys ordered by creation time, newest first.
func (s *Store) ListKeys(_ context.Context, clientID string) ([]*store.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*store.APIKey
	for _, k := range s.keys {
		if clientID != "" && k.ClientID != clientID {
			continue
		}
		out = append(out, cloneKey(k))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].KeyID > out[j].KeyID
	})
	return out, nil
}

// RevokeKey deactivates a key, effective immediately.
func (s *Store) RevokeKey(_ context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[keyID]
	if !ok {
		return store.ErrNotFound
	}
	k.IsActive = false
	return nil
}

// TouchLastUsed records the key's last use time.
func (s *Store) TouchLastUsed(_ context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[keyID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	k.LastUsed = &now
	return nil
}

// findActive returns the first active client matching the predicate.
func (s *Store) findActive(match func(*store.Client) bool) (*store.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.clients {
		if c.IsActive && match(c) {
			return cloneClient(c), nil
		}
	}
	return nil, store.ErrNotFound
}

func cloneClient(c *store.Client) *store.Client {
	out := *c
	out.Settings = copySettings(c.Settings)
	return &out
}

func cloneKey(k *store.APIKey) *store.APIKey {
	out := *k
	out.Scopes = append([]string(nil), k.Scopes...)
	if k.LastUsed != nil {
		t := *k.LastUsed
		out.LastUsed = &t
	}
	return &out
}

func copySettings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
