package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeProvider is a scriptable Provider for chain tests.
type fakeProvider struct {
	name     string
	header   string
	identity *Identity
	err      error
	calls    int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) CanHandle(r *http.Request) bool {
	return r.Header.Get(f.header) != ""
}

func (f *fakeProvider) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	f.calls++
	return f.identity, f.err
}

func newRequest(headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/v1/clients", nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestChainFirstMatchWins(t *testing.T) {
	first := &fakeProvider{name: "api_key", header: HeaderAPIKey, identity: &Identity{ClientID: "cli_1"}}
	second := &fakeProvider{name: "jwt", header: "Authorization", identity: &Identity{ClientID: "cli_2"}}

	chain := NewChain(ChainConfig{}).Add(first).Add(second)

	id, err := chain.Authenticate(context.Background(), newRequest(map[string]string{
		HeaderAPIKey:    "secret",
		"Authorization": "Bearer token",
	}))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.ClientID != "cli_1" {
		t.Errorf("ClientID = %q, want cli_1", id.ClientID)
	}
	if second.calls != 0 {
		t.Errorf("second provider called %d times after first succeeded", second.calls)
	}
}

func TestChainContinuesPastFailure(t *testing.T) {
	failing := &fakeProvider{name: "api_key", header: HeaderAPIKey, err: NewError(KindInvalidAPIKey, "unknown key")}
	succeeding := &fakeProvider{name: "jwt", header: "Authorization", identity: &Identity{ClientID: "cli_2"}}

	chain := NewChain(ChainConfig{}).Add(failing).Add(succeeding)

	id, err := chain.Authenticate(context.Background(), newRequest(map[string]string{
		HeaderAPIKey:    "bad",
		"Authorization": "Bearer good",
	}))
	if err != nil {
		t.Fatalf("Authenticate() error = %v, want success via second provider", err)
	}
	if id.ClientID != "cli_2" {
		t.Errorf("ClientID = %q, want cli_2", id.ClientID)
	}
}

func TestChainSurfacesLastError(t *testing.T) {
	first := &fakeProvider{name: "api_key", header: HeaderAPIKey, err: NewError(KindInvalidAPIKey, "unknown key")}
	second := &fakeProvider{name: "jwt", header: "Authorization", err: NewError(KindTokenExpired, "token expired")}

	chain := NewChain(ChainConfig{}).Add(first).Add(second)

	_, err := chain.Authenticate(context.Background(), newRequest(map[string]string{
		HeaderAPIKey:    "bad",
		"Authorization": "Bearer expired",
	}))
	e := AsError(err)
	if e == nil || e.Kind != KindTokenExpired {
		t.Fatalf("error = %v, want last recorded error (token_expired)", err)
	}
}

func TestChainNoCredentials(t *testing.T) {
	provider := &fakeProvider{name: "api_key", header: HeaderAPIKey}

	t.Run("401 without x402", func(t *testing.T) {
		chain := NewChain(ChainConfig{}).Add(provider)
		_, err := chain.Authenticate(context.Background(), newRequest(nil))
		e := AsError(err)
		if e == nil || e.Kind != KindMissingCredentials {
			t.Fatalf("error = %v, want missing_credentials", err)
		}
		if e.StatusCode() != http.StatusUnauthorized {
			t.Errorf("StatusCode() = %d, want 401", e.StatusCode())
		}
	})

	t.Run("402 challenge with x402", func(t *testing.T) {
		chain := NewChain(ChainConfig{
			X402Enabled: true,
			Challenge:   func() string { return "ZW5jb2RlZA==" },
		}).Add(provider)
		_, err := chain.Authenticate(context.Background(), newRequest(nil))
		e := AsError(err)
		if e == nil || e.Kind != KindPaymentRequired {
			t.Fatalf("error = %v, want payment_required", err)
		}
		if e.StatusCode() != http.StatusPaymentRequired {
			t.Errorf("StatusCode() = %d, want 402", e.StatusCode())
		}
		if e.Challenge != "ZW5jb2RlZA==" {
			t.Errorf("Challenge = %q, want encoded requirements", e.Challenge)
		}
	})
}

func TestChainAllowAnonymous(t *testing.T) {
	provider := &fakeProvider{name: "api_key", header: HeaderAPIKey, err: NewError(KindInvalidAPIKey, "bad")}
	chain := NewChain(ChainConfig{AllowAnonymous: true}).Add(provider)

	// Even with credentials present, anonymous mode bypasses every provider.
	id, err := chain.Authenticate(context.Background(), newRequest(map[string]string{HeaderAPIKey: "bad"}))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.AuthMethod != MethodAnonymous {
		t.Errorf("AuthMethod = %q, want anonymous", id.AuthMethod)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times in anonymous mode", provider.calls)
	}
}

func TestChainSchemes(t *testing.T) {
	chain := NewChain(ChainConfig{}).
		Add(&fakeProvider{name: "api_key", header: HeaderAPIKey}).
		Add(&fakeProvider{name: "jwt", header: "Authorization"}).
		Add(&fakeProvider{name: "x402", header: HeaderPayment})

	if got := chain.Schemes(); got != "ApiKey, Bearer, X402" {
		t.Errorf("Schemes() = %q", got)
	}
}
