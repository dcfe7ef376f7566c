package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, PBOM_CONFIG env, ./config.yaml, /etc/precisionbom/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. PBOM_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/precisionbom/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("PBOM_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/precisionbom/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps PBOM_* environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PBOM_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PBOM_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("PBOM_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}

	if v := os.Getenv("PBOM_AUTH_API_KEY_ENABLED"); v != "" {
		cfg.Auth.APIKeyEnabled = parseBool(v, cfg.Auth.APIKeyEnabled)
	}
	if v := os.Getenv("PBOM_AUTH_JWT_ENABLED"); v != "" {
		cfg.Auth.JWTEnabled = parseBool(v, cfg.Auth.JWTEnabled)
	}
	if v := os.Getenv("PBOM_AUTH_X402_ENABLED"); v != "" {
		cfg.Auth.X402Enabled = parseBool(v, cfg.Auth.X402Enabled)
	}
	if v := os.Getenv("PBOM_AUTH_ALLOW_ANONYMOUS"); v != "" {
		cfg.Auth.AllowAnonymous = parseBool(v, cfg.Auth.AllowAnonymous)
	}
	if v := os.Getenv("PBOM_AUTH_DEFAULT_AUDIENCE"); v != "" {
		cfg.Auth.DefaultAudience = v
	}

	// PBOM_OIDC_PROVIDERS: JSON array of OIDC provider configs.
	if v := os.Getenv("PBOM_OIDC_PROVIDERS"); v != "" {
		providers, err := parseOIDCProvidersJSON(v)
		if err == nil && len(providers) > 0 {
			cfg.Auth.OIDCProviders = providers
		}
	}

	if v := os.Getenv("PBOM_X402_NETWORK"); v != "" {
		cfg.Auth.X402.Network = v
	}
	if v := os.Getenv("PBOM_X402_FACILITATOR_URL"); v != "" {
		cfg.Auth.X402.FacilitatorURL = v
	}
	if v := os.Getenv("PBOM_X402_PAY_TO_ADDRESS"); v != "" {
		cfg.Auth.X402.PayToAddress = v
	}
	if v := os.Getenv("PBOM_X402_BASE_PRICE"); v != "" {
		cfg.Auth.X402.BasePrice = v
	}
	if v := os.Getenv("PBOM_X402_PER_ITEM_PRICE"); v != "" {
		cfg.Auth.X402.PerItemPrice = v
	}
}

// parseBool parses common boolean spellings, keeping the fallback on
// unrecognized input.
func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return fallback
	}
	return b
}

// parseOIDCProvidersJSON parses a JSON array of OIDC provider configurations.
func parseOIDCProvidersJSON(jsonStr string) ([]OIDCProviderConfig, error) {
	var providers []OIDCProviderConfig
	if err := json.Unmarshal([]byte(jsonStr), &providers); err != nil {
		return nil, fmt.Errorf("parsing OIDC providers JSON: %w", err)
	}
	return providers, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// auth.x402.pay_to_address_file -> auth.x402.pay_to_address
	if cfg.Auth.X402.PayToAddrFile != "" && cfg.Auth.X402.PayToAddress == "" {
		val, err := readSecretFile(cfg.Auth.X402.PayToAddrFile)
		if err != nil {
			return fmt.Errorf("auth.x402.pay_to_address_file: %w", err)
		}
		cfg.Auth.X402.PayToAddress = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
