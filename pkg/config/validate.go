package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rhuss/schach/pkg/api"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be > 0, got %d", c.Server.MaxBodySize))
	}

	for id, pc := range c.Providers {
		if !isKnownProvider(id) {
			errs = append(errs, fmt.Errorf("providers.%s: unknown provider, want one of %v", id, KnownProviders))
			continue
		}
		if id == api.ProviderLocal && !pc.Disabled {
			if pc.BaseURL == "" {
				errs = append(errs, fmt.Errorf("providers.local.base_url is required"))
			}
			if len(pc.Models) == 0 {
				errs = append(errs, fmt.Errorf("providers.local.models must list at least one model"))
			}
		}
		if pc.Timeout < 0 {
			errs = append(errs, fmt.Errorf("providers.%s.timeout must not be negative, got %s", id, pc.Timeout))
		}
		for i, m := range pc.Models {
			if m.ID == "" {
				errs = append(errs, fmt.Errorf("providers.%s.models[%d].id is required", id, i))
			}
		}
	}

	if err := c.Retry.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Defaults.Temperature < 0 || c.Defaults.Temperature > 2 {
		errs = append(errs, fmt.Errorf("defaults.temperature must be in [0, 2], got %g", c.Defaults.Temperature))
	}
	if c.Defaults.TokenBudget < 0 {
		errs = append(errs, fmt.Errorf("defaults.token_budget must not be negative, got %d", c.Defaults.TokenBudget))
	}

	switch c.Journal.Type {
	case "memory", "none":
	case "postgres":
		if c.Journal.Postgres.DSN == "" && c.Journal.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("journal.postgres.dsn or journal.postgres.dsn_file is required when journal.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("journal.type must be \"memory\", \"postgres\" or \"none\", got %q", c.Journal.Type))
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" && k.KeyFile == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
			}
			if k.Subject == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d].subject is required", i))
			}
		}
	case "jwt":
		hasSecret := c.Auth.JWT.Secret != "" || c.Auth.JWT.SecretFile != ""
		hasKey := c.Auth.JWT.PublicKeyFile != ""
		if hasSecret == hasKey {
			errs = append(errs, fmt.Errorf("auth.jwt: exactly one of secret and public_key_file is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}
	if c.Auth.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.requests_per_minute must not be negative"))
	}

	if c.Observability.Metrics.Enabled && c.Observability.Metrics.Path == "" {
		errs = append(errs, fmt.Errorf("observability.metrics.path is required when metrics are enabled"))
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	for side, p := range map[string]PlayerConfig{"white": c.Match.White, "black": c.Match.Black} {
		if p.Player == "" {
			continue
		}
		if _, _, err := ParsePlayer(p.Player); err != nil {
			errs = append(errs, fmt.Errorf("match.%s: %w", side, err))
		}
	}

	return errors.Join(errs...)
}

func isKnownProvider(id api.ProviderID) bool {
	return slices.Contains(KnownProviders, id)
}

// Player resolves a side of the match config against Defaults.
func (c *Config) Player(p PlayerConfig) (api.ProviderID, string, PlayerDefaults, error) {
	prov, model, err := ParsePlayer(p.Player)
	if err != nil {
		return "", "", PlayerDefaults{}, err
	}
	d := c.Defaults
	if p.Temperature != nil {
		d.Temperature = *p.Temperature
	}
	if p.TokenBudget > 0 {
		d.TokenBudget = p.TokenBudget
	}
	if p.Streaming != nil {
		d.Streaming = *p.Streaming
	}
	return prov, model, d, nil
}
