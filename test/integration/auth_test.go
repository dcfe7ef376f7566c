package integration

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/precision-bom/precisionBOM/pkg/auth"
)

func TestHealthEndpointNoAuth(t *testing.T) {
	resp := doRequest(t, http.MethodGet, testEnv.BaseURL()+"/healthz", nil, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 without auth, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("body = %q, want to contain 'ok'", body)
	}
}

func TestNoCredentialsReturns402WithChallenge(t *testing.T) {
	resp := doRequest(t, http.MethodGet, testEnv.BaseURL()+"/v1/clients", nil, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402 (x402 enabled)", resp.StatusCode)
	}

	challenge := resp.Header.Get("X-Payment-Required")
	if challenge == "" {
		t.Fatal("402 response must carry X-Payment-Required")
	}
	raw, err := base64.StdEncoding.DecodeString(challenge)
	if err != nil {
		t.Fatalf("challenge is not base64: %v", err)
	}
	var requirements map[string]string
	if err := json.Unmarshal(raw, &requirements); err != nil {
		t.Fatalf("challenge is not JSON: %v", err)
	}
	if requirements["basePrice"] != "0.05" {
		t.Errorf("challenge = %v", requirements)
	}

	if got := resp.Header.Get("WWW-Authenticate"); got != "ApiKey, X402" {
		t.Errorf("WWW-Authenticate = %q", got)
	}
}

func TestAPIKeyAuthentication(t *testing.T) {
	resp := doRequest(t, http.MethodGet, testEnv.BaseURL()+"/v1/clients", map[string]string{
		auth.HeaderAPIKey: testEnv.TenantSecret,
	}, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var clients []struct {
		ClientID string `json:"client_id"`
	}
	decodeBody(t, resp, &clients)
	if len(clients) != 1 || clients[0].ClientID != testEnv.TenantClient.ClientID {
		t.Errorf("tenant sees %+v, want only its own client", clients)
	}
}

func TestInvalidAPIKeyReturns401(t *testing.T) {
	resp := doRequest(t, http.MethodGet, testEnv.BaseURL()+"/v1/clients", map[string]string{
		auth.HeaderAPIKey: "pbom_sk_wrong",
	}, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Error.Type != "invalid_api_key" {
		t.Errorf("error.type = %q, want invalid_api_key", body.Error.Type)
	}
}

func TestX402PaymentAuthentication(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte(`{"sig":"0xdeadbeef"}`))

	resp := doRequest(t, http.MethodGet, testEnv.BaseURL()+"/v1/clients", map[string]string{
		auth.HeaderPayment: payload,
	}, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	// The paying wallet is auto-provisioned as an ephemeral client and
	// sees only itself.
	var clients []struct {
		ClientID      string            `json:"client_id"`
		WalletAddress string            `json:"wallet_address"`
		Settings      map[string]string `json:"settings"`
	}
	decodeBody(t, resp, &clients)
	if len(clients) != 1 {
		t.Fatalf("clients = %d, want 1", len(clients))
	}
	if clients[0].WalletAddress != "0x1111111111111111111111111111111111111111" {
		t.Errorf("wallet = %q", clients[0].WalletAddress)
	}
	if clients[0].Settings["ephemeral"] != "true" {
		t.Errorf("settings = %v, want ephemeral=true", clients[0].Settings)
	}
}

func TestBothCredentialsAPIKeyWins(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte(`{"sig":"0xdeadbeef"}`))

	resp := doRequest(t, http.MethodGet, testEnv.BaseURL()+"/v1/clients", map[string]string{
		auth.HeaderAPIKey:  testEnv.TenantSecret,
		auth.HeaderPayment: payload,
	}, nil)

	var clients []struct {
		ClientID string `json:"client_id"`
	}
	decodeBody(t, resp, &clients)
	if len(clients) != 1 || clients[0].ClientID != testEnv.TenantClient.ClientID {
		t.Errorf("identity = %+v, want the API key tenant (registered first)", clients)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	resp := doRequest(t, http.MethodGet, testEnv.BaseURL()+"/healthz", map[string]string{
		"X-Request-ID": "integration-test-id",
	}, nil)
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "integration-test-id" {
		t.Errorf("X-Request-ID = %q, want echoed value", got)
	}
}
