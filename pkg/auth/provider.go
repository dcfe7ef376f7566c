package auth

import (
	"context"
	"net/http"
)

// Provider authenticates one credential type. The set of providers is
// small, closed, and known at startup; new providers are registered into
// the Chain in a fixed order.
type Provider interface {
	// Name identifies the provider for logging and metrics.
	Name() string

	// CanHandle reports whether the request carries credentials this
	// provider understands (based purely on header presence). Multiple
	// providers may match the same request.
	CanHandle(r *http.Request) bool

	// Authenticate validates the credentials and produces an Identity,
	// or a typed *Error describing why they were rejected.
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)
}

// Header names consumed by the providers.
const (
	// HeaderAPIKey carries the raw API key secret.
	HeaderAPIKey = "X-API-Key"

	// HeaderPayment carries the base64-encoded payment proof.
	HeaderPayment = "X-Payment"

	// HeaderPaymentRequired carries the encoded payment requirements on
	// 402 challenge responses.
	HeaderPaymentRequired = "X-Payment-Required"
)
