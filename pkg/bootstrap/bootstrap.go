// Package bootstrap builds the runtime components of schach from a loaded
// configuration. Both the server and the CLI start here.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/auth"
	"github.com/rhuss/schach/pkg/auth/apikey"
	"github.com/rhuss/schach/pkg/auth/jwt"
	"github.com/rhuss/schach/pkg/config"
	"github.com/rhuss/schach/pkg/debug"
	"github.com/rhuss/schach/pkg/engine"
	"github.com/rhuss/schach/pkg/journal"
	"github.com/rhuss/schach/pkg/journal/memory"
	"github.com/rhuss/schach/pkg/journal/postgres"
	"github.com/rhuss/schach/pkg/provider"
	"github.com/rhuss/schach/pkg/provider/anthropic"
	"github.com/rhuss/schach/pkg/provider/deepseek"
	"github.com/rhuss/schach/pkg/provider/gemini"
	"github.com/rhuss/schach/pkg/provider/local"
	"github.com/rhuss/schach/pkg/provider/openai"
	"github.com/rhuss/schach/pkg/provider/xai"
	"github.com/rhuss/schach/pkg/transport"
)

// Logging installs the process-wide logger described by cfg.
func Logging(cfg config.LoggingConfig, out io.Writer) {
	debug.Init(debug.Options{
		Categories: cfg.Debug,
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     out,
	})
}

// Registry builds a provider registry holding every enabled provider. The
// local provider is registered only when configured.
func Registry(cfg *config.Config) (*provider.Registry, error) {
	reg, err := provider.NewRegistry()
	if err != nil {
		return nil, err
	}

	for _, id := range config.KnownProviders {
		pc, configured := cfg.Providers[id]
		if pc.Disabled {
			debug.Log("providers", "provider disabled", "provider", id)
			continue
		}
		if id == api.ProviderLocal && !configured {
			continue
		}

		a, err := newAdapter(id, pc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", id, err)
		}
		if err := reg.Register(a); err != nil {
			return nil, err
		}
		debug.Log("providers", "provider registered",
			"provider", id,
			"base_url", pc.BaseURL,
			"models", len(a.Models()),
			"has_key", pc.APIKey != "",
		)
	}
	return reg, nil
}

func newAdapter(id api.ProviderID, pc config.ProviderConfig) (provider.Adapter, error) {
	switch id {
	case api.ProviderOpenAI:
		return openai.New(openai.Config{BaseURL: pc.BaseURL, ExtraModels: pc.Descriptors()})
	case api.ProviderAnthropic:
		return anthropic.New(anthropic.Config{BaseURL: pc.BaseURL, ExtraModels: pc.Descriptors()})
	case api.ProviderGemini:
		return gemini.New(gemini.Config{BaseURL: pc.BaseURL, ExtraModels: pc.Descriptors()})
	case api.ProviderDeepSeek:
		return deepseek.New(deepseek.Config{BaseURL: pc.BaseURL, ExtraModels: pc.Descriptors()})
	case api.ProviderXAI:
		return xai.New(xai.Config{BaseURL: pc.BaseURL, ExtraModels: pc.Descriptors()})
	case api.ProviderLocal:
		return local.New(local.Config{BaseURL: pc.BaseURL, Models: pc.Descriptors()})
	default:
		return nil, fmt.Errorf("no adapter for provider %q", id)
	}
}

// BaseURL returns the configured endpoint of id, or the vendor default.
func BaseURL(id api.ProviderID, pc config.ProviderConfig) string {
	if pc.BaseURL != "" {
		return pc.BaseURL
	}
	switch id {
	case api.ProviderOpenAI:
		return openai.DefaultBaseURL
	case api.ProviderAnthropic:
		return anthropic.DefaultBaseURL
	case api.ProviderGemini:
		return gemini.DefaultBaseURL
	case api.ProviderDeepSeek:
		return deepseek.DefaultBaseURL
	case api.ProviderXAI:
		return xai.DefaultBaseURL
	default:
		return ""
	}
}

// Keys returns the configured vendor API keys.
func Keys(cfg *config.Config) map[api.ProviderID]string {
	keys := make(map[api.ProviderID]string, len(cfg.Providers))
	for id, pc := range cfg.Providers {
		if pc.APIKey != "" {
			keys[id] = pc.APIKey
		}
	}
	return keys
}

// Journal opens the configured attempt journal. It returns nil for type
// "none".
func Journal(ctx context.Context, cfg config.JournalConfig) (journal.Store, error) {
	switch cfg.Type {
	case "", "memory":
		slog.Info("journal enabled", "type", "memory", "max_size", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres journal: %w", err)
		}
		slog.Info("journal enabled", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return store, nil
	case "none":
		slog.Info("journal disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}

// Engine creates the move resolution engine. store may be nil.
func Engine(cfg *config.Config, store journal.Store, logger *slog.Logger) (*engine.Engine, error) {
	reg, err := Registry(cfg)
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{
		engine.WithPolicy(cfg.Retry),
		engine.WithLogger(logger),
	}
	if store != nil {
		opts = append(opts, engine.WithJournal(store))
	}
	return engine.New(reg, Executor(cfg), opts...)
}

// Executor builds the vendor transport. Providers with a configured timeout
// get a client of their own.
func Executor(cfg *config.Config) *transport.Router {
	r := &transport.Router{
		Default: transport.New(transport.Config{}),
		Clients: make(map[api.ProviderID]*transport.Client),
	}
	for id, pc := range cfg.Providers {
		if pc.Disabled || pc.Timeout <= 0 {
			continue
		}
		r.Clients[id] = transport.New(transport.Config{Timeout: pc.Timeout})
	}
	return r
}

// Settings converts player defaults into first-attempt settings.
func Settings(d config.PlayerDefaults, apiKey string) engine.Settings {
	return engine.Settings{
		Temperature: d.Temperature,
		TokenBudget: d.TokenBudget,
		Streaming:   d.Streaming,
		APIKey:      apiKey,
	}
}

// Auth builds the authenticator chain and rate limiter. Both are nil for
// type "none"; the limiter is nil when no limit is configured.
func Auth(cfg config.AuthConfig) (*auth.Chain, auth.RateLimiter, error) {
	var authn auth.Authenticator
	switch cfg.Type {
	case "", "none":
		return nil, nil, nil
	case "apikey":
		entries := make([]apikey.Entry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entries = append(entries, apikey.Entry{
				Key: k.Key,
				Identity: auth.Identity{
					Subject:     k.Subject,
					TenantID:    k.TenantID,
					ServiceTier: k.ServiceTier,
				},
			})
		}
		authn = apikey.New(entries)
	case "jwt":
		jc := jwt.Config{
			Issuer:      cfg.JWT.Issuer,
			Audience:    cfg.JWT.Audience,
			TenantClaim: cfg.JWT.TenantClaim,
			TierClaim:   cfg.JWT.TierClaim,
		}
		if cfg.JWT.Secret != "" {
			jc.Secret = []byte(cfg.JWT.Secret)
		}
		if cfg.JWT.PublicKeyFile != "" {
			key, err := jwt.LoadPublicKey(cfg.JWT.PublicKeyFile)
			if err != nil {
				return nil, nil, err
			}
			jc.PublicKey = key
		}
		a, err := jwt.New(jc)
		if err != nil {
			return nil, nil, err
		}
		authn = a
	default:
		return nil, nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}

	chain := &auth.Chain{Authenticators: []auth.Authenticator{authn}, DefaultDecision: auth.No}

	var limiter auth.RateLimiter
	if cfg.RateLimit.RequestsPerMinute > 0 || len(cfg.RateLimit.Tiers) > 0 {
		limiter = auth.NewInProcessLimiter(cfg.RateLimit.Tiers, cfg.RateLimit.RequestsPerMinute)
	}
	slog.Info("authentication enabled", "type", cfg.Type, "rate_limited", limiter != nil)
	return chain, limiter, nil
}

// ProviderIDs returns the registered providers, sorted.
func ProviderIDs(reg *provider.Registry) []api.ProviderID {
	ids := map[api.ProviderID]bool{}
	for _, a := range reg.Adapters() {
		ids[a.ID()] = true
	}
	return slices.Sorted(maps.Keys(ids))
}
