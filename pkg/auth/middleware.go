package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/precision-bom/precisionBOM/pkg/observability"
	"github.com/precision-bom/precisionBOM/pkg/store"
)

// Middleware creates HTTP middleware from a Chain. It checks the bypass
// list, runs authentication, injects the identity and tenant into the
// request context, and writes typed failures with the status code and
// challenge headers the credential contract requires.
func Middleware(chain *Chain, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := chain.Authenticate(r.Context(), r)
			if err != nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				writeAuthFailure(w, chain, err)
				return
			}

			slog.Debug("authentication succeeded",
				"client_id", identity.ClientID,
				"method", identity.AuthMethod,
				"path", r.URL.Path,
			)
			observability.AuthAttemptsTotal.WithLabelValues(string(identity.AuthMethod), "success").Inc()

			ctx := SetIdentity(r.Context(), identity)
			ctx = store.SetTenant(ctx, identity.ClientID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthFailure renders a typed failure as a JSON error response with
// the scheme advertisement and, for 402s, the payment challenge header.
func writeAuthFailure(w http.ResponseWriter, chain *Chain, err error) {
	e := AsError(err)
	if e == nil {
		e = WrapError(KindMissingCredentials, "authentication required", err)
	}

	observability.AuthAttemptsTotal.WithLabelValues("chain", string(e.Kind)).Inc()

	status := e.StatusCode()
	w.Header().Set("WWW-Authenticate", chain.Schemes())
	if e.Challenge != "" {
		w.Header().Set(HeaderPaymentRequired, e.Challenge)
	}
	if status == http.StatusPaymentRequired {
		observability.AuthChallengesTotal.WithLabelValues(string(e.Kind)).Inc()
	}

	WriteError(w, status, string(e.Kind), e.Message)
}

// errorBody is the JSON error envelope shared by the auth middleware and
// the admin API.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// WriteError writes the standard JSON error envelope.
func WriteError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Type: errType, Message: message}})
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}
