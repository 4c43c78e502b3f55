package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhuss/schach/pkg/bootstrap"
	"github.com/rhuss/schach/pkg/config"
)

const version = "0.1.0"

// cli holds state shared by all subcommands.
type cli struct {
	configPath string
	logLevel   string
	debug      string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "schach",
		Short:         "Chess between language models",
		Long:          "schach asks language models for chess moves, validates them and retries with a richer prompt when a model answers illegally.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: $SCHACH_CONFIG, ./config.yaml, /etc/schach/config.yaml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&c.debug, "debug", "", "debug categories, e.g. providers,retry")

	root.AddCommand(newPlayCmd(c))
	root.AddCommand(newMoveCmd(c))
	root.AddCommand(newModelsCmd(c))
	root.AddCommand(newMockCmd(c))
	return root
}

// load reads the configuration once and installs logging on stderr.
func (c *cli) load(cmd *cobra.Command) (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	} else if cfg.Logging.Level == "info" {
		// Keep the terminal for the game; info logs go to --log-level info.
		cfg.Logging.Level = "warn"
	}
	if c.debug != "" {
		cfg.Logging.Debug = c.debug
	}
	bootstrap.Logging(cfg.Logging, cmd.ErrOrStderr())
	c.cfg = cfg
	return cfg, nil
}
