// Command server runs the schach move resolution API.
//
// Configuration comes from a YAML file (-config, SCHACH_CONFIG,
// ./config.yaml or /etc/schach/config.yaml) overlaid with SCHACH_*
// environment variables. Commonly used variables:
//
//	SCHACH_PORT               - Listen port (default: 8080)
//	SCHACH_JOURNAL            - Journal type: "memory", "postgres" or "none"
//	SCHACH_JOURNAL_DSN        - PostgreSQL DSN for the postgres journal
//	SCHACH_AUTH_TYPE          - "none", "apikey" or "jwt"
//	SCHACH_<PROVIDER>_API_KEY - Vendor API key, e.g. SCHACH_OPENAI_API_KEY
//	SCHACH_LOG_LEVEL          - debug, info, warn or error
//	SCHACH_DEBUG              - Debug categories, e.g. "providers,retry"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/schach/pkg/bootstrap"
	"github.com/rhuss/schach/pkg/config"
	"github.com/rhuss/schach/pkg/engine"
	"github.com/rhuss/schach/pkg/journal"
	"github.com/rhuss/schach/pkg/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	bootstrap.Logging(cfg.Logging, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.Journal(ctx, cfg.Journal)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	eng, err := bootstrap.Engine(cfg, store, slog.Default())
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	chain, limiter, err := bootstrap.Auth(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}
	opts := []server.Option{
		server.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		server.WithMaxBodySize(cfg.Server.MaxBodySize),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		server.WithMetricsPath(metricsPath),
		server.WithProviderKeys(bootstrap.Keys(cfg)),
		server.WithDefaults(engine.Settings{
			Temperature: cfg.Defaults.Temperature,
			TokenBudget: cfg.Defaults.TokenBudget,
		}),
	}
	if chain != nil {
		opts = append(opts, server.WithAuth(chain, limiter))
	}

	srv, err := server.New(eng, store, opts...)
	if err != nil {
		return err
	}

	slog.Info("schach starting",
		"port", cfg.Server.Port,
		"providers", bootstrap.ProviderIDs(eng.Registry()),
		"journal", cfg.Journal.Type,
		"auth", cfg.Auth.Type,
		"max_attempts", cfg.Retry.MaxAttempts,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if store != nil {
		g.Go(func() error {
			watchJournal(gctx, store)
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchJournal logs journal health transitions until ctx ends.
func watchJournal(ctx context.Context, store journal.Store) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := store.HealthCheck(hctx)
		cancel()
		switch {
		case err != nil && healthy:
			slog.Warn("journal unhealthy", "error", err)
		case err == nil && !healthy:
			slog.Info("journal recovered")
		}
		healthy = err == nil
	}
}
