package auth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorStatusCode(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindMissingCredentials, http.StatusUnauthorized},
		{KindInvalidAPIKey, http.StatusUnauthorized},
		{KindInactiveClient, http.StatusUnauthorized},
		{KindMissingIssuer, http.StatusUnauthorized},
		{KindUnknownIssuer, http.StatusUnauthorized},
		{KindTokenExpired, http.StatusUnauthorized},
		{KindTokenInvalidSignature, http.StatusUnauthorized},
		{KindPaymentPayloadMalformed, http.StatusUnauthorized},
		{KindPaymentRequired, http.StatusPaymentRequired},
		{KindPaymentVerificationFailed, http.StatusPaymentRequired},
		{KindPaymentSettlementFailed, http.StatusPaymentRequired},
		{KindInsufficientScope, http.StatusForbidden},
		{KindCrossTenantAccessDenied, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := NewError(tt.kind, "boom")
			if got := e.StatusCode(); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("socket closed")
	e := WrapError(KindPaymentVerificationFailed, "verify failed", cause)

	if !errors.Is(e, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if got := e.Error(); got != "payment_verification_failed: verify failed: socket closed" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAsError(t *testing.T) {
	e := NewError(KindInvalidAPIKey, "bad key")
	wrapped := fmt.Errorf("outer: %w", e)

	if got := AsError(wrapped); got == nil || got.Kind != KindInvalidAPIKey {
		t.Errorf("AsError(wrapped) = %v, want kind %s", got, KindInvalidAPIKey)
	}
	if got := AsError(errors.New("plain")); got != nil {
		t.Errorf("AsError(plain) = %v, want nil", got)
	}
}
