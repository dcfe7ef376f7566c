// Package config provides unified configuration for the precisionBOM server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (PBOM_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the precisionBOM server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 60s
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// AuthConfig holds authentication settings. Each credential provider is
// enabled independently; the registration order (api_key, jwt, x402) is
// fixed regardless of which providers are enabled.
type AuthConfig struct {
	APIKeyEnabled bool `yaml:"api_key_enabled"` // default: true
	JWTEnabled    bool `yaml:"jwt_enabled"`     // default: true
	X402Enabled   bool `yaml:"x402_enabled"`    // default: false

	// AllowAnonymous bypasses authentication entirely. Development and
	// test escape hatch; never enable in production.
	AllowAnonymous bool `yaml:"allow_anonymous"` // default: false

	// DefaultAudience is the expected JWT audience for clients that do
	// not pin one of their own.
	DefaultAudience string `yaml:"default_audience"` // default: "precisionbom-api"

	// OIDCProviders lists the trusted token issuers.
	OIDCProviders []OIDCProviderConfig `yaml:"oidc_providers"`

	X402 X402Config `yaml:"x402"`
}

// OIDCProviderConfig describes a trusted OIDC issuer.
type OIDCProviderConfig struct {
	Name     string `yaml:"name"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	ClientID string `yaml:"client_id"`
}

// X402Config holds the crypto-payment provider settings.
type X402Config struct {
	Network        string `yaml:"network"`         // default: "base-sepolia"
	FacilitatorURL string `yaml:"facilitator_url"` // default: "https://x402.org/facilitator"
	PayToAddress   string `yaml:"pay_to_address"`  // required when enabled
	PayToAddrFile  string `yaml:"pay_to_address_file"`
	BasePrice      string `yaml:"base_price"`     // USD decimal, default: "0.05"
	PerItemPrice   string `yaml:"per_item_price"` // USD decimal, default: "0.005"
}

// AllowedIssuers returns the issuer URLs of all configured OIDC providers.
func (a *AuthConfig) AllowedIssuers() []string {
	issuers := make([]string, 0, len(a.OIDCProviders))
	for _, p := range a.OIDCProviders {
		if p.Issuer != "" {
			issuers = append(issuers, p.Issuer)
		}
	}
	return issuers
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			APIKeyEnabled:   true,
			JWTEnabled:      true,
			X402Enabled:     false,
			DefaultAudience: "precisionbom-api",
			X402: X402Config{
				Network:        "base-sepolia",
				FacilitatorURL: "https://x402.org/facilitator",
				BasePrice:      "0.05",
				PerItemPrice:   "0.005",
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
