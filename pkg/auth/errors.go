package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an authentication or authorization failure. Every kind
// maps to exactly one HTTP status code. All kinds are terminal: nothing
// is retried internally.
type Kind string

const (
	KindMissingCredentials        Kind = "missing_credentials"
	KindInvalidAPIKey             Kind = "invalid_api_key"
	KindInactiveClient            Kind = "inactive_client"
	KindMissingIssuer             Kind = "missing_issuer"
	KindUnknownIssuer             Kind = "unknown_issuer"
	KindTokenExpired              Kind = "token_expired"
	KindTokenInvalidSignature     Kind = "token_invalid_signature"
	KindPaymentRequired           Kind = "payment_required"
	KindPaymentPayloadMalformed   Kind = "payment_payload_malformed"
	KindPaymentVerificationFailed Kind = "payment_verification_failed"
	KindPaymentSettlementFailed   Kind = "payment_settlement_failed"
	KindInsufficientScope         Kind = "insufficient_scope"
	KindCrossTenantAccessDenied   Kind = "cross_tenant_access_denied"
)

// Error is a typed authentication/authorization failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error // optional underlying cause

	// Challenge carries the base64-encoded payment requirements attached
	// to 402 responses.
	Challenge string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode maps the failure kind to its HTTP status:
// authentication failures are 401, payment failures 402, and
// authorization failures (scope/tenant) are always 403, never 401/402.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindPaymentRequired, KindPaymentVerificationFailed, KindPaymentSettlementFailed:
		return http.StatusPaymentRequired
	case KindInsufficientScope, KindCrossTenantAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// NewError creates a typed failure.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates a typed failure with an underlying cause.
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// AsError extracts a typed *Error from err, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
