package integration

import (
	"net/http"
	"testing"

	"github.com/precision-bom/precisionBOM/pkg/auth"
)

func TestAdminCreatesClientAndKey(t *testing.T) {
	adminHeaders := map[string]string{auth.HeaderAPIKey: testEnv.AdminSecret}

	resp := doRequest(t, http.MethodPost, testEnv.BaseURL()+"/v1/clients", adminHeaders, map[string]string{
		"name": "Integration Tenant",
		"slug": "integration-tenant",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create client status = %d, want 201", resp.StatusCode)
	}
	var client struct {
		ClientID string `json:"client_id"`
	}
	decodeBody(t, resp, &client)

	resp = doRequest(t, http.MethodPost, testEnv.BaseURL()+"/v1/api-keys", adminHeaders, map[string]any{
		"client_id": client.ClientID,
		"name":      "bootstrap",
		"scopes":    []string{"read"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create key status = %d, want 201", resp.StatusCode)
	}
	var key struct {
		Secret string `json:"secret"`
	}
	decodeBody(t, resp, &key)
	if key.Secret == "" {
		t.Fatal("created key must include the raw secret")
	}

	// The new key authenticates immediately.
	resp = doRequest(t, http.MethodGet, testEnv.BaseURL()+"/v1/clients", map[string]string{
		auth.HeaderAPIKey: key.Secret,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status with new key = %d, want 200", resp.StatusCode)
	}
}

func TestTenantCannotCreateClients(t *testing.T) {
	resp := doRequest(t, http.MethodPost, testEnv.BaseURL()+"/v1/clients", map[string]string{
		auth.HeaderAPIKey: testEnv.TenantSecret,
	}, map[string]string{
		"name": "Escalation",
		"slug": "escalation",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403 (scope check, not 401)", resp.StatusCode)
	}
}

func TestKeyRevocationTakesEffectImmediately(t *testing.T) {
	adminHeaders := map[string]string{auth.HeaderAPIKey: testEnv.AdminSecret}

	resp := doRequest(t, http.MethodPost, testEnv.BaseURL()+"/v1/api-keys", adminHeaders, map[string]any{
		"client_id": testEnv.TenantClient.ClientID,
		"name":      "short-lived",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create key status = %d", resp.StatusCode)
	}
	var key struct {
		KeyID  string `json:"key_id"`
		Secret string `json:"secret"`
	}
	decodeBody(t, resp, &key)

	resp = doRequest(t, http.MethodGet, testEnv.BaseURL()+"/v1/clients", map[string]string{
		auth.HeaderAPIKey: key.Secret,
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status before revoke = %d, want 200", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodDelete, testEnv.BaseURL()+"/v1/api-keys/"+key.KeyID, adminHeaders, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke status = %d, want 204", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, testEnv.BaseURL()+"/v1/clients", map[string]string{
		auth.HeaderAPIKey: key.Secret,
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status after revoke = %d, want 401", resp.StatusCode)
	}
}
