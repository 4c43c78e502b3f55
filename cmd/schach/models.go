package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/bootstrap"
	"github.com/rhuss/schach/pkg/config"
)

type modelsOptions struct {
	probe   bool
	timeout time.Duration
}

func newModelsCmd(c *cli) *cobra.Command {
	o := &modelsOptions{}
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models of every enabled provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			return runModels(cmd, cfg, o)
		},
	}
	cmd.Flags().BoolVar(&o.probe, "probe", false, "check that each provider endpoint answers")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 5*time.Second, "per-provider probe timeout")
	return cmd
}

func runModels(cmd *cobra.Command, cfg *config.Config, o *modelsOptions) error {
	reg, err := bootstrap.Registry(cfg)
	if err != nil {
		return err
	}
	keys := bootstrap.Keys(cfg)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYER\tMAX TOKENS\tSTREAMING\tREASONING\tKEY")
	for _, id := range bootstrap.ProviderIDs(reg) {
		a, err := reg.Lookup(id)
		if err != nil {
			return err
		}
		key := "missing"
		if keys[id] != "" {
			key = "set"
		} else if id == api.ProviderLocal {
			key = "-"
		}
		for _, m := range a.Models() {
			fmt.Fprintf(tw, "%s/%s\t%d\t%s\t%s\t%s\n", id, m.ID, m.MaxTokenCeiling, yesNo(m.SupportsStreaming), yesNo(m.Reasoning), key)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !o.probe {
		return nil
	}
	results := probe(cmd.Context(), cfg, bootstrap.ProviderIDs(reg), o.timeout)

	fmt.Fprintln(cmd.OutOrStdout())
	tw = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tENDPOINT\tREACHABLE\tLATENCY\tDETAIL")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.provider, r.url, yesNo(r.err == nil), r.latency.Round(time.Millisecond), r.detail())
	}
	return tw.Flush()
}

type probeResult struct {
	provider api.ProviderID
	url      string
	status   int
	latency  time.Duration
	err      error
}

func (r probeResult) detail() string {
	if r.err != nil {
		return r.err.Error()
	}
	return fmt.Sprintf("HTTP %d", r.status)
}

// probe sends one unauthenticated GET to each provider's models endpoint.
// Any HTTP answer counts as reachable; a 401 only means the key is missing.
func probe(ctx context.Context, cfg *config.Config, ids []api.ProviderID, timeout time.Duration) []probeResult {
	results := make([]probeResult, len(ids))
	client := &http.Client{Timeout: timeout}

	var g errgroup.Group
	g.SetLimit(4)
	for i, id := range ids {
		g.Go(func() error {
			url := strings.TrimRight(bootstrap.BaseURL(id, cfg.Providers[id]), "/") + "/models"
			results[i] = probeResult{provider: id, url: url}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				results[i].err = err
				return nil
			}
			start := time.Now()
			resp, err := client.Do(req)
			results[i].latency = time.Since(start)
			if err != nil {
				results[i].err = err
				return nil
			}
			resp.Body.Close()
			results[i].status = resp.StatusCode
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
