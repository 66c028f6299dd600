package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.fd.io/govpp"

	"github.com/veesix-networks/vppom/internal/reconciler"
	"github.com/veesix-networks/vppom/pkg/hw"
)

func NewDumpCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Import bindings from VPP and print them without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			conn, err := govpp.Connect(cfg.Dataplane.VPPAPISocket)
			if err != nil {
				return fmt.Errorf("connect to VPP: %w", err)
			}
			defer conn.Disconnect()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			stack := reconciler.NewStack(hw.NewQueue(conn))
			if err := stack.Model.Populate(ctx, "dump"); err != nil {
				fmt.Fprintf(os.Stderr, "populate incomplete: %v\n", err)
			}

			if opts.Format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stack.Records())
			}
			return stack.Dump(cmd.OutOrStdout())
		},
	}
}
