// Package x402 implements the crypto-payment credential provider.
//
// A request pays per call by attaching an X-Payment header containing a
// base64-encoded payment authorization. The provider verifies the
// authorization with an external facilitator service, settles it
// on-chain, and maps the paying wallet to a client, auto-provisioning an
// ephemeral client the first time a wallet is seen.
package x402

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/precision-bom/precisionBOM/pkg/auth"
	"github.com/precision-bom/precisionBOM/pkg/store"
)

// Config holds the x402 provider settings.
type Config struct {
	// Pricing describes the network, recipient wallet, and price schedule.
	Pricing PricingConfig

	// FacilitatorURL is the base URL of the x402 facilitator service.
	FacilitatorURL string

	// HTTPClient, when set, overrides the facilitator HTTP client.
	HTTPClient *http.Client
}

// Provider authenticates requests that carry an X-Payment header.
type Provider struct {
	cfg         Config
	clients     store.ClientStore
	facilitator *Facilitator
}

// New creates an x402 provider backed by the given client store.
func New(cfg Config, clients store.ClientStore) *Provider {
	return &Provider{
		cfg:         cfg,
		clients:     clients,
		facilitator: NewFacilitator(cfg.FacilitatorURL, cfg.HTTPClient),
	}
}

// Name implements auth.Provider.
func (p *Provider) Name() string { return "x402" }

// CanHandle reports whether the request carries an X-Payment header.
func (p *Provider) CanHandle(r *http.Request) bool {
	return r.Header.Get(auth.HeaderPayment) != ""
}

// Challenge encodes the price schedule for 402 responses issued when no
// credentials were presented at all.
func (p *Provider) Challenge() string {
	c, err := encodeRateCard(p.cfg.Pricing)
	if err != nil {
		return ""
	}
	return c
}

// Authenticate verifies and settles the payment, then resolves the
// paying wallet to a client. Verification and settlement are two
// separate facilitator calls; a settlement failure after a successful
// verify is surfaced as-is, with no compensation.
func (p *Provider) Authenticate(ctx context.Context, r *http.Request) (*auth.Identity, error) {
	payload, err := decodePayment(r.Header.Get(auth.HeaderPayment))
	if err != nil {
		return nil, auth.WrapError(auth.KindPaymentPayloadMalformed, "invalid payment payload", err)
	}

	verify, err := p.facilitator.Verify(ctx, payload, Requirements{
		Network:   p.cfg.Pricing.Network,
		Recipient: p.cfg.Pricing.Recipient,
	})
	if err != nil {
		return nil, p.paymentError(auth.KindPaymentVerificationFailed, "payment verification failed", err)
	}
	if !verify.Valid {
		msg := "payment verification failed"
		if verify.Error != "" {
			msg = fmt.Sprintf("payment verification failed: %s", verify.Error)
		}
		return nil, p.paymentError(auth.KindPaymentVerificationFailed, msg, nil)
	}

	settle, err := p.facilitator.Settle(ctx, payload)
	if err != nil {
		return nil, p.paymentError(auth.KindPaymentSettlementFailed, "payment settlement failed", err)
	}
	if !settle.Success {
		msg := "payment settlement failed"
		if settle.Error != "" {
			msg = fmt.Sprintf("payment settlement failed: %s", settle.Error)
		}
		return nil, p.paymentError(auth.KindPaymentSettlementFailed, msg, nil)
	}

	wallet := strings.ToLower(payerAddress(verify, payload))
	if wallet == "" {
		return nil, auth.NewError(auth.KindPaymentPayloadMalformed, "payment payload has no payer address")
	}

	client, err := p.resolveWalletClient(ctx, wallet)
	if err != nil {
		return nil, auth.WrapError(auth.KindPaymentVerificationFailed, "resolving wallet client", err)
	}

	return &auth.Identity{
		ClientID:      client.ClientID,
		ClientName:    client.Name,
		AuthMethod:    auth.MethodX402,
		Scopes:        []string{auth.ScopeAll},
		WalletAddress: wallet,
	}, nil
}

// paymentError attaches the price schedule challenge so the caller can
// retry with a corrected payment.
func (p *Provider) paymentError(kind auth.Kind, msg string, cause error) *auth.Error {
	e := auth.WrapError(kind, msg, cause)
	e.Challenge = p.Challenge()
	return e
}

// decodePayment parses the X-Payment header value. The header is
// base64-encoded JSON; raw JSON is accepted as a fallback.
func decodePayment(header string) (map[string]any, error) {
	raw := []byte(header)
	if decoded, err := base64.StdEncoding.DecodeString(header); err == nil {
		raw = decoded
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("payment header is neither base64 JSON nor JSON: %w", err)
	}
	return payload, nil
}

// payerAddress extracts the paying wallet, preferring the facilitator's
// verified answer over the self-reported payload field.
func payerAddress(verify *VerifyResult, payload map[string]any) string {
	if verify.Payer != "" {
		return verify.Payer
	}
	if payer, ok := payload["payer"].(string); ok {
		return payer
	}
	return ""
}

// resolveWalletClient maps a wallet address to a client, provisioning an
// ephemeral client on first sight. Provisioning is idempotent: concurrent
// payments from the same new wallet yield exactly one client.
func (p *Provider) resolveWalletClient(ctx context.Context, wallet string) (*store.Client, error) {
	client, err := p.clients.GetClientByWallet(ctx, wallet)
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	slug := walletSlug(wallet)
	client, err = p.clients.GetClientBySlug(ctx, slug)
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	client, err = p.clients.CreateClient(ctx, store.NewClient{
		Name:          fmt.Sprintf("x402 Wallet %s", shortWallet(wallet)),
		Slug:          slug,
		WalletAddress: wallet,
		Settings:      map[string]string{"ephemeral": "true"},
	})
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return nil, err
	}

	// Lost the create race; the winner's client is now visible.
	client, lookupErr := p.clients.GetClientByWallet(ctx, wallet)
	if lookupErr == nil {
		return client, nil
	}
	return p.clients.GetClientBySlug(ctx, slug)
}

// walletSlug derives the deterministic slug for an ephemeral wallet
// client: "x402-" plus the first 12 hex chars of sha256(wallet).
func walletSlug(wallet string) string {
	sum := sha256.Sum256([]byte(wallet))
	return "x402-" + hex.EncodeToString(sum[:])[:12]
}

// shortWallet abbreviates an address for display ("0xabcd...wxyz").
func shortWallet(wallet string) string {
	if len(wallet) <= 10 {
		return wallet
	}
	return wallet[:6] + "..." + wallet[len(wallet)-4:]
}
