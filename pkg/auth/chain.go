package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// Chain orchestrates credential providers in a fixed registration order.
// It is the single authentication entry point the rest of the system calls.
type Chain struct {
	providers []Provider

	// allowAnonymous bypasses all providers and grants a fixed anonymous
	// identity (development/test escape hatch).
	allowAnonymous bool

	// x402Enabled controls whether a credential-less request is answered
	// with a 402 payment challenge instead of a plain 401.
	x402Enabled bool

	// challenge produces the encoded payment requirements attached to
	// 402 challenges. Nil when x402 is disabled.
	challenge func() string
}

// ChainConfig holds the policy knobs for a Chain.
type ChainConfig struct {
	AllowAnonymous bool
	X402Enabled    bool

	// Challenge returns the base64-encoded payment requirements for
	// credential-less requests. Required when X402Enabled is true.
	Challenge func() string
}

// NewChain creates an empty chain with the given policy.
func NewChain(cfg ChainConfig) *Chain {
	return &Chain{
		allowAnonymous: cfg.AllowAnonymous,
		x402Enabled:    cfg.X402Enabled,
		challenge:      cfg.Challenge,
	}
}

// Add registers a provider. Providers are tried in registration order.
func (c *Chain) Add(p Provider) *Chain {
	c.providers = append(c.providers, p)
	return c
}

// Providers returns the registered providers in order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

// Schemes returns the WWW-Authenticate scheme advertisement for the
// registered providers.
func (c *Chain) Schemes() string {
	var schemes []string
	for _, p := range c.providers {
		switch p.Name() {
		case "api_key":
			schemes = append(schemes, "ApiKey")
		case "jwt":
			schemes = append(schemes, "Bearer")
		case "x402":
			schemes = append(schemes, "X402")
		}
	}
	if len(schemes) == 0 {
		return "Bearer"
	}
	return strings.Join(schemes, ", ")
}

// Authenticate runs the chain against the request.
//
// Every provider whose CanHandle matches is tried in order; the first
// Identity wins. A provider failure does not abort the chain; later
// matching providers still get a chance, so a caller can supply several
// credential types in one request. When all matching providers fail, the
// last recorded error is surfaced verbatim so operators can tell which
// credential type failed and why. When nothing matched at all, the result
// is a 402 payment challenge if x402 is enabled, else a generic 401.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	if c.allowAnonymous {
		return Anonymous(), nil
	}

	var lastErr error
	for _, p := range c.providers {
		if !p.CanHandle(r) {
			continue
		}

		identity, err := p.Authenticate(ctx, r)
		if err == nil && identity != nil {
			return identity, nil
		}
		if err != nil {
			slog.Debug("provider rejected credentials", "provider", p.Name(), "error", err)
			lastErr = err
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}

	// No credentials were presented at all.
	if c.x402Enabled {
		e := NewError(KindPaymentRequired, "payment required: provide an API key, bearer token, or x402 payment")
		if c.challenge != nil {
			e.Challenge = c.challenge()
		}
		return nil, e
	}

	return nil, NewError(KindMissingCredentials, "authentication required")
}
