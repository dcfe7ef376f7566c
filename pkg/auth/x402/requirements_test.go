package x402

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func decodeRequirements(t *testing.T, encoded string) map[string]string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decoding requirements: %v", err)
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshaling requirements: %v", err)
	}
	return out
}

func TestEncodeRequirements(t *testing.T) {
	cfg := PricingConfig{
		Network:      "base-sepolia",
		Recipient:    "0xRecipient",
		BasePrice:    "0.05",
		PerItemPrice: "0.01",
	}

	got := decodeRequirements(t, mustEncode(t, cfg, 10))
	if got["price"] != "0.15" {
		t.Errorf("price = %q, want 0.15", got["price"])
	}
	if got["network"] != "base-sepolia" || got["recipient"] != "0xRecipient" {
		t.Errorf("network/recipient = %q/%q", got["network"], got["recipient"])
	}
	if got["asset"] != "USDC" {
		t.Errorf("asset = %q, want USDC", got["asset"])
	}
}

func mustEncode(t *testing.T, cfg PricingConfig, items int) string {
	t.Helper()
	encoded, err := EncodeRequirements(cfg, items)
	if err != nil {
		t.Fatalf("EncodeRequirements: %v", err)
	}
	return encoded
}

func TestEncodeRequirementsPriceMath(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		perItem string
		count   int
		want    string
	}{
		{"zero items", "0.05", "0.005", 0, "0.05"},
		{"exact decimal sum", "0.05", "0.01", 10, "0.15"},
		{"fractional per item", "0.05", "0.005", 3, "0.065"},
		{"no fractional noise", "0.1", "0.2", 1, "0.3"},
		{"whole number", "1", "0.5", 2, "2"},
		{"free", "0", "0", 100, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := PricingConfig{Network: "base", Recipient: "0x1", BasePrice: tt.base, PerItemPrice: tt.perItem}
			got := decodeRequirements(t, mustEncode(t, cfg, tt.count))
			if got["price"] != tt.want {
				t.Errorf("price = %q, want %q", got["price"], tt.want)
			}
		})
	}
}

func TestEncodeRequirementsInvalidPrice(t *testing.T) {
	cfg := PricingConfig{Network: "base", Recipient: "0x1", BasePrice: "not-a-number", PerItemPrice: "0.01"}
	if _, err := EncodeRequirements(cfg, 1); err == nil {
		t.Error("EncodeRequirements should reject a non-decimal base price")
	}

	cfg = PricingConfig{Network: "base", Recipient: "0x1", BasePrice: "0.05", PerItemPrice: "-0.01"}
	if _, err := EncodeRequirements(cfg, 1); err == nil {
		t.Error("EncodeRequirements should reject a negative per-item price")
	}
}

func TestEncodeRateCard(t *testing.T) {
	cfg := PricingConfig{
		Network:      "base-sepolia",
		Recipient:    "0xRecipient",
		BasePrice:    "0.05",
		PerItemPrice: "0.005",
	}
	encoded, err := encodeRateCard(cfg)
	if err != nil {
		t.Fatalf("encodeRateCard: %v", err)
	}
	got := decodeRequirements(t, encoded)
	if got["basePrice"] != "0.05" || got["perItemPrice"] != "0.005" {
		t.Errorf("rate card = %v", got)
	}
}
