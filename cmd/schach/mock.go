package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rhuss/schach/pkg/mockvendor"
)

type mockOptions struct {
	addr       string
	mode       string
	apiKey     string
	tokenDelay time.Duration
	retryAfter time.Duration
}

func newMockCmd(c *cli) *cobra.Command {
	o := &mockOptions{}
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run a scripted OpenAI-compatible vendor for offline games",
		Long: `Run a scripted chat completions server. The model name selects the
behavior: mock-legal, mock-illegal, mock-garbage, mock-error, mock-ratelimit
and mock-stubborn. Point the local provider at it:

  providers:
    local:
      base_url: http://localhost:9090/v1
      models: [{id: mock-legal}, {id: mock-stubborn}]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := c.load(cmd); err != nil {
				return err
			}
			mode := mockvendor.Mode(o.mode)
			if !slices.Contains(mockvendor.Modes, mode) {
				return fmt.Errorf("unknown mode %q, want one of %v", o.mode, mockvendor.Modes)
			}
			ln, err := net.Listen("tcp", o.addr)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveMock(ctx, cmd, ln, mockvendor.Config{
				DefaultMode: mode,
				APIKey:      o.apiKey,
				TokenDelay:  o.tokenDelay,
				RetryAfter:  o.retryAfter,
			})
		},
	}
	cmd.Flags().StringVar(&o.addr, "addr", ":9090", "listen address")
	cmd.Flags().StringVar(&o.mode, "mode", string(mockvendor.Legal), "behavior for models not named after a mode")
	cmd.Flags().StringVar(&o.apiKey, "api-key", "", "require this bearer token")
	cmd.Flags().DurationVar(&o.tokenDelay, "token-delay", 20*time.Millisecond, "pause between streamed chunks")
	cmd.Flags().DurationVar(&o.retryAfter, "retry-after", 5*time.Second, "Retry-After sent by mock-ratelimit")
	return cmd
}

// serveMock serves the mock vendor on ln until ctx ends.
func serveMock(ctx context.Context, cmd *cobra.Command, ln net.Listener, cfg mockvendor.Config) error {
	srv := &http.Server{
		Handler:           mockvendor.New(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Fprintf(cmd.OutOrStdout(), "mock vendor listening on http://%s/v1 (default mode %s)\n", ln.Addr(), cfg.DefaultMode)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
