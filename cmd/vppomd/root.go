package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/veesix-networks/vppom/pkg/config"
	"github.com/veesix-networks/vppom/pkg/logger"
)

type RootOptions struct {
	ConfigPath string
	Format     string
}

var validFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "vppomd",
		Short:         "Keep VPP ACL and address bindings in line with configuration",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "/etc/vppom/config.yaml", "path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))

	return cmd
}

func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger.Configure(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Components)
	return cfg, nil
}
