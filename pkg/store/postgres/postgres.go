// Package postgres provides PostgreSQL-backed implementations of the client
// and API key stores. It uses pgx/v5 for connection pooling and relies on
// unique indexes for the atomicity the payment provider's get-or-create
// path requires.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/precision-bom/precisionBOM/pkg/store"
)

// Store is a PostgreSQL-backed ClientStore and APIKeyStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements both contracts at compile time.
var (
	_ store.ClientStore = (*Store)(nil)
	_ store.APIKeyStore = (*Store)(nil)
)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const clientColumns = `client_id, name, slug, is_active, oidc_issuer, oidc_audience,
       wallet_address, settings, created_at, updated_at`

// CreateClient inserts a new client. Unique violations on slug or wallet
// address are reported as store.ErrConflict; the unique indexes make the
// insert atomic under concurrent creates for the same wallet.
func (s *Store) CreateClient(ctx context.Context, p store.NewClient) (*store.Client, error) {
	now := time.Now().UTC()
	c := &store.Client{
		ClientID:      store.NewClientID(),
		Name:          p.Name,
		Slug:          p.Slug,
		IsActive:      true,
		OIDCIssuer:    p.OIDCIssuer,
		OIDCAudience:  p.OIDCAudience,
		WalletAddress: strings.ToLower(p.WalletAddress),
		Settings:      p.Settings,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if c.Settings == nil {
		c.Settings = map[string]string{}
	}

	settingsJSON, err := json.Marshal(c.Settings)
	if err != nil {
		return nil, fmt.Errorf("marshaling settings: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO clients (
			client_id, name, slug, is_active, oidc_issuer, oidc_audience,
			wallet_address, settings, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		c.ClientID, c.Name, c.Slug, c.IsActive,
		nullString(c.OIDCIssuer), nullString(c.OIDCAudience), nullString(c.WalletAddress),
		settingsJSON, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, fmt.Errorf("inserting client: %w", err)
	}

	return c, nil
}

// GetClient returns the client with the given ID, active or not.
func (s *Store) GetClient(ctx context.Context, clientID string) (*store.Client, error) {
	return s.queryClient(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE client_id = $1", clientID)
}

// GetClientBySlug returns the client with the given slug, active or not.
func (s *Store) GetClientBySlug(ctx context.Context, slug string) (*store.Client, error) {
	return s.queryClient(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE slug = $1", slug)
}

// GetClientByOIDCIssuer returns the active client bound to the issuer.
func (s *Store) GetClientByOIDCIssuer(ctx context.Context, issuer string) (*store.Client, error) {
	return s.queryClient(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE oidc_issuer = $1 AND is_active", issuer)
}

// GetClientByOIDCAudience returns the active client bound to the audience.
func (s *Store) GetClientByOIDCAudience(ctx context.Context, audience string) (*store.Client, error) {
	return s.queryClient(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE oidc_audience = $1 AND is_active", audience)
}

// GetClientByWallet returns the active client owning the wallet address.
func (s *Store) GetClientByWallet(ctx context.Context, walletAddress string) (*store.Client, error) {
	return s.queryClient(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE wallet_address = $1 AND is_active",
		strings.ToLower(walletAddress))
}

// ListClients returns clients ordered by creation time, newest first.
func (s *Store) ListClients(ctx context.Context, includeInactive bool) ([]*store.Client, error) {
	query := "SELECT " + clientColumns + " FROM clients"
	if !includeInactive {
		query += " WHERE is_active"
	}
	query += " ORDER BY created_at DESC, client_id DESC"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	defer rows.Close()

	var out []*store.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeactivateClient soft-deletes a client.
func (s *Store) DeactivateClient(ctx context.Context, clientID string) error {
	result, err := s.pool.Exec(ctx,
		"UPDATE clients SET is_active = FALSE, updated_at = $1 WHERE client_id = $2",
		time.Now().UTC(), clientID)
	if err != nil {
		return fmt.Errorf("deactivating client: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const keyColumns = `key_id, hashed_secret, client_id, name, scopes, created_at, last_used, is_active`

// CreateKey inserts a new API key and returns the raw secret exactly once.
func (s *Store) CreateKey(ctx context.Context, p store.NewAPIKey) (*store.APIKey, string, error) {
	raw := store.NewSecret()

	scopes := p.Scopes
	if len(scopes) == 0 {
		scopes = []string{"all"}
	}

	k := &store.APIKey{
		KeyID:        store.NewKeyID(),
		HashedSecret: store.HashSecret(raw),
		ClientID:     p.ClientID,
		Name:         p.Name,
		Scopes:       scopes,
		CreatedAt:    time.Now().UTC(),
		IsActive:     true,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_keys (key_id, hashed_secret, client_id, name, scopes, created_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, k.KeyID, k.HashedSecret, k.ClientID, k.Name, k.Scopes, k.CreatedAt, k.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, "", store.ErrConflict
		}
		return nil, "", fmt.Errorf("inserting api key: %w", err)
	}

	return k, raw, nil
}

// ValidateSecret looks up an active key by the hash of the raw secret.
func (s *Store) ValidateSecret(ctx context.Context, rawSecret string) (*store.APIKey, error) {
	return s.queryKey(ctx,
		"SELECT "+keyColumns+" FROM api_keys WHERE hashed_secret = $1 AND is_active",
		store.HashSecret(rawSecret))
}

// GetKey returns the key with the given ID, active or not.
func (s *Store) GetKey(ctx context.Context, keyID string) (*store.APIKey, error) {
	return s.queryKey(ctx,
		"SELECT "+keyColumns+" FROM api_keys WHERE key_id = $1", keyID)
}

// ListKeys returns keys ordered by creation time, newest first.
func (s *Store) ListKeys(ctx context.Context, clientID string) ([]*store.APIKey, error) {
	query := "SELECT " + keyColumns + " FROM api_keys"
	var args []any
	if clientID != "" {
		query += " WHERE client_id = $1"
		args = append(args, clientID)
	}
	query += " ORDER BY created_at DESC, key_id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var out []*store.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RevokeKey deactivates a key, effective immediately.
func (s *Store) RevokeKey(ctx context.Context, keyID string) error {
	result, err := s.pool.Exec(ctx,
		"UPDATE api_keys SET is_active = FALSE WHERE key_id = $1", keyID)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TouchLastUsed records the key's last use time.
func (s *Store) TouchLastUsed(ctx context.Context, keyID string) error {
	result, err := s.pool.Exec(ctx,
		"UPDATE api_keys SET last_used = $1 WHERE key_id = $2",
		time.Now().UTC(), keyID)
	if err != nil {
		return fmt.Errorf("updating last_used: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) queryClient(ctx context.Context, query string, args ...any) (*store.Client, error) {
	c, err := scanClient(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return c, err
}

func scanClient(row rowScanner) (*store.Client, error) {
	var c store.Client
	var issuer, audience, wallet *string
	var settingsJSON []byte

	err := row.Scan(
		&c.ClientID, &c.Name, &c.Slug, &c.IsActive,
		&issuer, &audience, &wallet,
		&settingsJSON, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning client: %w", err)
	}

	c.OIDCIssuer = deref(issuer)
	c.OIDCAudience = deref(audience)
	c.WalletAddress = deref(wallet)

	c.Settings = map[string]string{}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &c.Settings); err != nil {
			return nil, fmt.Errorf("unmarshaling settings: %w", err)
		}
	}

	return &c, nil
}

func (s *Store) queryKey(ctx context.Context, query string, args ...any) (*store.APIKey, error) {
	k, err := scanKey(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return k, err
}

func scanKey(row rowScanner) (*store.APIKey, error) {
	var k store.APIKey
	err := row.Scan(
		&k.KeyID, &k.HashedSecret, &k.ClientID, &k.Name, &k.Scopes,
		&k.CreatedAt, &k.LastUsed, &k.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning api key: %w", err)
	}
	return &k, nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// isUniqueViolation checks for a PostgreSQL unique violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
