package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/precision-bom/precisionBOM/pkg/observability"
)

// keyCache caches RSA public keys per issuer, discovered through the
// standard OIDC indirection: the issuer's discovery document names a
// jwks_uri, which serves the key set. The cache is process-wide,
// populated lazily on first use per issuer, and refreshed when the TTL
// expires or the provider invalidates an issuer after a signature
// verification failure (key rotation tolerance).
type keyCache struct {
	mu      sync.RWMutex
	issuers map[string]*issuerKeys
	ttl     time.Duration
	client  *http.Client
}

// issuerKeys holds one issuer's fetched key set.
type issuerKeys struct {
	keys      map[string]*rsa.PublicKey // kid -> public key
	fetchedAt time.Time
}

func newKeyCache(ttl time.Duration, client *http.Client) *keyCache {
	return &keyCache{
		issuers: make(map[string]*issuerKeys),
		ttl:     ttl,
		client:  client,
	}
}

// key returns the RSA public key for the given issuer and kid, fetching
// the issuer's key set if it is unknown or expired.
func (c *keyCache) key(ctx context.Context, issuer, kid string) (*rsa.PublicKey, error) {
	// Try cache first with read lock.
	c.mu.RLock()
	if ik, ok := c.issuers[issuer]; ok && time.Since(ik.fetchedAt) < c.ttl {
		if key, ok := ik.keys[kid]; ok {
			c.mu.RUnlock()
			return key, nil
		}
	}
	c.mu.RUnlock()

	// Cache miss or expired: refresh with write lock.
	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have refreshed).
	if ik, ok := c.issuers[issuer]; ok && time.Since(ik.fetchedAt) < c.ttl {
		if key, ok := ik.keys[kid]; ok {
			return key, nil
		}
	}

	ik, err := c.fetchIssuer(ctx, issuer)
	if err != nil {
		observability.JWKSRefreshTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	observability.JWKSRefreshTotal.WithLabelValues("success").Inc()
	c.issuers[issuer] = ik

	key, ok := ik.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %q not found in JWKS for issuer %s", kid, issuer)
	}

	return key, nil
}

// invalidate drops the issuer's cached key set so the next lookup fetches
// a fresh one. Called after a signature verification failure to tolerate
// key rotation.
func (c *keyCache) invalidate(issuer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.issuers, issuer)
}

// fetchIssuer resolves the issuer's discovery document and fetches its JWKS.
func (c *keyCache) fetchIssuer(ctx context.Context, issuer string) (*issuerKeys, error) {
	discoveryURL := strings.TrimRight(issuer, "/") + "/.well-known/openid-configuration"

	var discovery struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := c.getJSON(ctx, discoveryURL, &discovery); err != nil {
		return nil, fmt.Errorf("fetching discovery document: %w", err)
	}
	if discovery.JWKSURI == "" {
		return nil, fmt.Errorf("discovery document for %s has no jwks_uri", issuer)
	}

	var jwks jwksDocument
	if err := c.getJSON(ctx, discovery.JWKSURI, &jwks); err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, jwk := range jwks.Keys {
		if jwk.Kty != "RSA" {
			continue
		}
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}

		pubKey, err := parseRSAPublicKey(jwk)
		if err != nil {
			slog.Warn("skipping JWKS key", "kid", jwk.Kid, "error", err)
			continue
		}

		keys[jwk.Kid] = pubKey
	}

	slog.Debug("JWKS cache refreshed", "issuer", issuer, "keys", len(keys))
	return &issuerKeys{keys: keys, fetchedAt: time.Now()}, nil
}

// getJSON fetches a URL and decodes the JSON body.
func (c *keyCache) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	return json.Unmarshal(body, out)
}

// jwksDocument represents the JSON Web Key Set response.
type jwksDocument struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey represents a single JSON Web Key.
type jwkKey struct {
	Kty string `json:"kty"` // Key type (e.g., "RSA")
	Kid string `json:"kid"` // Key ID
	Use string `json:"use"` // Key use (e.g., "sig")
	N   string `json:"n"`   // RSA modulus (base64url-encoded)
	E   string `json:"e"`   // RSA public exponent (base64url-encoded)
}

// parseRSAPublicKey constructs an *rsa.PublicKey from a JWK.
func parseRSAPublicKey(jwk jwkKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	if !e.IsInt64() {
		return nil, fmt.Errorf("RSA exponent too large")
	}

	return &rsa.PublicKey{
		N: n,
		E: int(e.Int64()),
	}, nil
}
