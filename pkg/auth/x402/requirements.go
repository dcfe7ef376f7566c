package x402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// PricingConfig holds the payment parameters used to build challenges.
type PricingConfig struct {
	// Network is the settlement network (e.g. "base-sepolia", "base").
	Network string

	// Recipient is the wallet address payments are made to.
	Recipient string

	// BasePrice is the USD base price per request, as a decimal string.
	BasePrice string

	// PerItemPrice is the USD price per BOM line item, as a decimal string.
	PerItemPrice string
}

// EncodeRequirements computes price = base + perItem × itemCount and
// serializes the payment requirements as base64-encoded JSON for use in
// challenge responses. It is deterministic and side-effect-free.
func EncodeRequirements(cfg PricingConfig, itemCount int) (string, error) {
	price, err := totalPrice(cfg.BasePrice, cfg.PerItemPrice, itemCount)
	if err != nil {
		return "", err
	}

	description := "BOM analysis"
	if itemCount > 0 {
		description = fmt.Sprintf("BOM analysis (%d items)", itemCount)
	}

	return encodeJSON(map[string]string{
		"price":       price,
		"network":     cfg.Network,
		"recipient":   cfg.Recipient,
		"asset":       "USDC",
		"description": description,
	})
}

// encodeRateCard serializes the base/per-item pricing for 402 responses
// where the item count is not known (payment verification failures).
func encodeRateCard(cfg PricingConfig) (string, error) {
	return encodeJSON(map[string]string{
		"basePrice":    cfg.BasePrice,
		"perItemPrice": cfg.PerItemPrice,
		"network":      cfg.Network,
		"recipient":    cfg.Recipient,
		"asset":        "USDC",
	})
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding payment requirements: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// totalPrice computes base + perItem × count using exact rational
// arithmetic, so decimal prices never pick up float noise.
func totalPrice(base, perItem string, count int) (string, error) {
	b, err := parseDecimal(base)
	if err != nil {
		return "", fmt.Errorf("base price: %w", err)
	}
	p, err := parseDecimal(perItem)
	if err != nil {
		return "", fmt.Errorf("per-item price: %w", err)
	}

	total := new(big.Rat).Add(b, new(big.Rat).Mul(p, new(big.Rat).SetInt64(int64(count))))
	return formatDecimal(total), nil
}

// parseDecimal parses a non-negative decimal string into a rational.
func parseDecimal(s string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid decimal %q", s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("negative price %q", s)
	}
	return r, nil
}

// formatDecimal renders a rational as a decimal string with trailing
// zeros trimmed ("0.15", not "0.150000").
func formatDecimal(r *big.Rat) string {
	s := r.FloatString(6)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" {
		return "0"
	}
	return s
}
