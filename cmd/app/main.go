// File: cmd/app/main.go
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"subscription-service/internal/config"
	"subscription-service/internal/infra/logging"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configPath string
	dev        bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:          "subscription-service",
		Short:        "Subscription creation service: plan catalog, payment and persistence",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&opts.dev, "dev", false, "enable developer mode (console logs, unredacted tokens)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", version, commit)
			return err
		},
	}
}

// load reads the config and builds the root logger.
func (o *rootOptions) load() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.LoadConfig(o.configPath, o.dev)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	return cfg, logger, nil
}
