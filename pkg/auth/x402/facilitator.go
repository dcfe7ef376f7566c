package x402

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/precision-bom/precisionBOM/pkg/observability"
)

const defaultFacilitatorTimeout = 30 * time.Second

// Facilitator talks to an x402 facilitator service, which verifies
// payment authorizations off-chain and settles them on-chain.
type Facilitator struct {
	baseURL string
	client  *http.Client
}

// NewFacilitator creates a client for the facilitator at baseURL.
// If httpClient is nil a default client with a 30s timeout is used.
func NewFacilitator(baseURL string, httpClient *http.Client) *Facilitator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultFacilitatorTimeout}
	}
	return &Facilitator{baseURL: baseURL, client: httpClient}
}

// Requirements describes what the facilitator should verify the
// payment against.
type Requirements struct {
	Network   string `json:"network"`
	Recipient string `json:"recipient"`
}

// VerifyResult is the facilitator's answer to a verification request.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	Payer string `json:"payer"`
	Error string `json:"error"`
}

// SettleResult is the facilitator's answer to a settlement request.
type SettleResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Verify asks the facilitator whether the payment payload is a valid
// authorization for the given requirements. A verify that returns
// Valid=false is not a transport error.
func (f *Facilitator) Verify(ctx context.Context, payload map[string]any, req Requirements) (*VerifyResult, error) {
	body := map[string]any{
		"payload":      payload,
		"requirements": req,
	}
	var result VerifyResult
	if err := f.post(ctx, "/verify", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Settle submits the payment for on-chain settlement. Settlement is
// attempted once; there is no compensation path for a verify that
// succeeded but a settle that failed.
func (f *Facilitator) Settle(ctx context.Context, payload map[string]any) (*SettleResult, error) {
	body := map[string]any{"payload": payload}
	var result SettleResult
	if err := f.post(ctx, "/settle", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (f *Facilitator) post(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding facilitator request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building facilitator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := f.client.Do(req)
	observability.FacilitatorLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.FacilitatorRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("calling facilitator %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	observability.FacilitatorRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("facilitator %s returned status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding facilitator response: %w", err)
	}
	return nil
}
