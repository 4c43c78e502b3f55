package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/schach/pkg/api"
)

// KnownProviders lists the provider IDs with a built-in adapter.
var KnownProviders = []api.ProviderID{
	api.ProviderOpenAI,
	api.ProviderAnthropic,
	api.ProviderGemini,
	api.ProviderDeepSeek,
	api.ProviderXAI,
	api.ProviderLocal,
}

// vendorKeyVars are the variables the vendors' own SDKs read. They apply
// only when neither the file nor SCHACH_<PROVIDER>_API_KEY set a key.
var vendorKeyVars = map[api.ProviderID][]string{
	api.ProviderOpenAI:    {"OPENAI_API_KEY"},
	api.ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	api.ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	api.ProviderDeepSeek:  {"DEEPSEEK_API_KEY"},
	api.ProviderXAI:       {"XAI_API_KEY"},
}

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, SCHACH_CONFIG env, ./config.yaml, /etc/schach/config.yaml)
//  3. SCHACH_* environment variable overrides
//  4. Vendor-native API key variables
//  5. File reference resolution (_file suffix)
//  6. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}
	applyVendorKeys(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. SCHACH_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/schach/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("SCHACH_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/schach/config.yaml"} {
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
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	if cfg.Providers == nil {
		cfg.Providers = map[api.ProviderID]ProviderConfig{}
	}
	return nil
}

// applyEnvOverrides maps SCHACH_* variables to config fields. Malformed
// numeric values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SCHACH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCHACH_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SCHACH_JOURNAL"); v != "" {
		cfg.Journal.Type = v
	}
	if v := os.Getenv("SCHACH_JOURNAL_DSN"); v != "" {
		cfg.Journal.Postgres.DSN = v
	}
	if v := os.Getenv("SCHACH_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}
	if v := os.Getenv("SCHACH_API_KEYS"); v != "" {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err != nil {
			return fmt.Errorf("SCHACH_API_KEYS: %w", err)
		}
		cfg.Auth.APIKeys = keys
	}
	if v := os.Getenv("SCHACH_RETRY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCHACH_RETRY_MAX_ATTEMPTS: %w", err)
		}
		cfg.Retry.MaxAttempts = n
	}
	if v := os.Getenv("SCHACH_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SCHACH_RETRY_DELAY: %w", err)
		}
		cfg.Retry.Delay = d
	}
	if v := os.Getenv("SCHACH_STREAMING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SCHACH_STREAMING: %w", err)
		}
		cfg.Defaults.Streaming = b
	}
	if v := os.Getenv("SCHACH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCHACH_DEBUG"); v != "" {
		cfg.Logging.Debug = v
	}

	for _, id := range providerIDs(cfg) {
		prefix := "SCHACH_" + strings.ToUpper(string(id)) + "_"
		key, hasKey := os.LookupEnv(prefix + "API_KEY")
		baseURL, hasURL := os.LookupEnv(prefix + "BASE_URL")
		timeout := os.Getenv(prefix + "TIMEOUT")
		if !hasKey && !hasURL && timeout == "" {
			continue
		}
		pc := cfg.Providers[id]
		if hasKey {
			pc.APIKey = key
		}
		if hasURL {
			pc.BaseURL = baseURL
		}
		if timeout != "" {
			d, err := time.ParseDuration(timeout)
			if err != nil {
				return fmt.Errorf("%sTIMEOUT: %w", prefix, err)
			}
			pc.Timeout = d
		}
		cfg.Providers[id] = pc
	}
	return nil
}

// applyVendorKeys fills missing API keys from the vendors' own variables.
func applyVendorKeys(cfg *Config) {
	for id, vars := range vendorKeyVars {
		pc := cfg.Providers[id]
		if pc.APIKey != "" || pc.APIKeyFile != "" {
			continue
		}
		for _, name := range vars {
			if v := os.Getenv(name); v != "" {
				pc.APIKey = v
				cfg.Providers[id] = pc
				break
			}
		}
	}
}

// providerIDs returns the built-in providers plus any configured ones.
func providerIDs(cfg *Config) []api.ProviderID {
	ids := append([]api.ProviderID{}, KnownProviders...)
	for id := range cfg.Providers {
		if !isKnownProvider(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	for id, pc := range cfg.Providers {
		if pc.APIKeyFile != "" && pc.APIKey == "" {
			val, err := readSecretFile(pc.APIKeyFile)
			if err != nil {
				return fmt.Errorf("providers.%s.api_key_file: %w", id, err)
			}
			pc.APIKey = val
			cfg.Providers[id] = pc
		}
	}

	if cfg.Journal.Postgres.DSNFile != "" && cfg.Journal.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Journal.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("journal.postgres.dsn_file: %w", err)
		}
		cfg.Journal.Postgres.DSN = val
	}

	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	if cfg.Auth.JWT.SecretFile != "" && cfg.Auth.JWT.Secret == "" {
		val, err := readSecretFile(cfg.Auth.JWT.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		cfg.Auth.JWT.Secret = val
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

// ParsePlayer splits "provider/model". The model part may itself contain
// slashes (local servers often name models "org/name").
func ParsePlayer(s string) (api.ProviderID, string, error) {
	prov, model, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || prov == "" || model == "" {
		return "", "", fmt.Errorf("player %q: want provider/model", s)
	}
	return api.ProviderID(strings.ToLower(prov)), model, nil
}
