// Package config provides unified configuration for the schach server and CLI.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (SCHACH_ prefix)
//  4. Vendor-native API key variables (OPENAI_API_KEY and friends)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import (
	"time"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/retry"
)

// Config holds all configuration for schach.
type Config struct {
	Server        ServerConfig                      `yaml:"server"`
	Providers     map[api.ProviderID]ProviderConfig `yaml:"providers"`
	Retry         retry.Policy                      `yaml:"retry"`
	Defaults      PlayerDefaults                    `yaml:"defaults"`
	Journal       JournalConfig                     `yaml:"journal"`
	Auth          AuthConfig                        `yaml:"auth"`
	Observability ObservabilityConfig               `yaml:"observability"`
	Logging       LoggingConfig                     `yaml:"logging"`
	Match         MatchConfig                       `yaml:"match"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 0, streams run until the ply ends
	MaxBodySize  int64         `yaml:"max_body_size"` // default: 1 MiB
}

// ProviderConfig configures one vendor adapter.
type ProviderConfig struct {
	// BaseURL overrides the vendor's public endpoint.
	BaseURL string `yaml:"base_url"`

	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key

	// Models extend the built-in catalog. For the local provider they are
	// the whole catalog.
	Models []ModelConfig `yaml:"models"`

	// Timeout bounds one vendor round trip. Zero keeps the transport
	// default.
	Timeout time.Duration `yaml:"timeout"`

	// Disabled removes the provider from the registry.
	Disabled bool `yaml:"disabled"`
}

// ModelConfig declares a catalog entry. Streaming defaults to on.
type ModelConfig struct {
	ID                string `yaml:"id"`
	DisplayName       string `yaml:"display_name"`
	MaxTokenCeiling   int    `yaml:"max_token_ceiling"`
	SupportsStreaming *bool  `yaml:"supports_streaming"` // default: true
	Reasoning         bool   `yaml:"reasoning"`
}

// Descriptor converts m into a catalog entry.
func (m ModelConfig) Descriptor() api.ModelDescriptor {
	streaming := true
	if m.SupportsStreaming != nil {
		streaming = *m.SupportsStreaming
	}
	return api.ModelDescriptor{
		ID:                m.ID,
		DisplayName:       m.DisplayName,
		MaxTokenCeiling:   m.MaxTokenCeiling,
		SupportsStreaming: streaming,
		Reasoning:         m.Reasoning,
	}
}

// Descriptors returns the configured models as catalog entries.
func (pc ProviderConfig) Descriptors() []api.ModelDescriptor {
	if len(pc.Models) == 0 {
		return nil
	}
	out := make([]api.ModelDescriptor, len(pc.Models))
	for i, m := range pc.Models {
		out[i] = m.Descriptor()
	}
	return out
}

// PlayerDefaults are the base parameters of a first attempt.
type PlayerDefaults struct {
	Temperature float64 `yaml:"temperature"`  // default: 0.7
	TokenBudget int     `yaml:"token_budget"` // default: 300
	Streaming   bool    `yaml:"streaming"`
}

// JournalConfig selects where attempts are recorded.
type JournalConfig struct {
	Type     string         `yaml:"type"`     // "memory", "postgres" or "none", default: "memory"
	MaxSize  int            `yaml:"max_size"` // resolutions kept by the memory journal, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// AuthConfig holds authentication settings for the HTTP API.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey" or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string `yaml:"subject" json:"subject"`
	TenantID    string `yaml:"tenant_id" json:"tenant_id"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// JWTConfig configures bearer token validation. Exactly one of the secret
// (HS256) and the public key (RS256) must be set.
type JWTConfig struct {
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	Secret        string `yaml:"secret"`
	SecretFile    string `yaml:"secret_file"`     // _file variant for secret
	PublicKeyFile string `yaml:"public_key_file"` // PEM encoded RSA key
	TenantClaim   string `yaml:"tenant_claim"`    // default: "tenant_id"
	TierClaim     string `yaml:"tier_claim"`      // default: "tier"
}

// RateLimitConfig caps requests per subject.
type RateLimitConfig struct {
	// RequestsPerMinute applies to tiers not listed in Tiers. Zero disables
	// the limiter.
	RequestsPerMinute int            `yaml:"requests_per_minute"`
	Tiers             map[string]int `yaml:"tiers"`
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

// LoggingConfig feeds debug.Init.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// MatchConfig names the players of `schach play`.
type MatchConfig struct {
	White PlayerConfig `yaml:"white"`
	Black PlayerConfig `yaml:"black"`
}

// PlayerConfig describes one side. Player is "provider/model"; zero
// parameters fall back to Defaults.
type PlayerConfig struct {
	Player      string   `yaml:"player"`
	Temperature *float64 `yaml:"temperature"`
	TokenBudget int      `yaml:"token_budget"`
	Streaming   *bool    `yaml:"streaming"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8080,
			ReadTimeout: 30 * time.Second,
			MaxBodySize: 1 << 20,
		},
		Providers: map[api.ProviderID]ProviderConfig{},
		Retry:     retry.DefaultPolicy(),
		Defaults: PlayerDefaults{
			Temperature: 0.7,
			TokenBudget: 300,
		},
		Journal: JournalConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns:       10,
				MigrateOnStart: true,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
