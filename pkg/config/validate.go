package config

import (
	"errors"
	"fmt"
	"math/big"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	// OIDC providers need an issuer to be resolvable.
	for i, p := range c.Auth.OIDCProviders {
		if p.Issuer == "" {
			errs = append(errs, fmt.Errorf("auth.oidc_providers[%d].issuer is required", i))
		}
	}

	// x402, when enabled, needs a recipient and facilitator, and the
	// prices must parse as non-negative decimals.
	if c.Auth.X402Enabled {
		if c.Auth.X402.PayToAddress == "" && c.Auth.X402.PayToAddrFile == "" {
			errs = append(errs, fmt.Errorf("auth.x402.pay_to_address or auth.x402.pay_to_address_file is required when auth.x402_enabled is true"))
		}
		if c.Auth.X402.FacilitatorURL == "" {
			errs = append(errs, fmt.Errorf("auth.x402.facilitator_url is required when auth.x402_enabled is true"))
		}
		if err := validatePrice("auth.x402.base_price", c.Auth.X402.BasePrice); err != nil {
			errs = append(errs, err)
		}
		if err := validatePrice("auth.x402.per_item_price", c.Auth.X402.PerItemPrice); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// validatePrice checks that a price string parses as a non-negative decimal.
func validatePrice(field, value string) error {
	r, ok := new(big.Rat).SetString(value)
	if !ok {
		return fmt.Errorf("%s must be a decimal string, got %q", field, value)
	}
	if r.Sign() < 0 {
		return fmt.Errorf("%s must be non-negative, got %q", field, value)
	}
	return nil
}
