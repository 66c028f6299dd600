package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veesix-networks/vppom/pkg/opdb/sqlite"
)

func NewJournalCommand(opts *RootOptions) *cobra.Command {
	var path, flavour string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print the bindings recorded in the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				path = cfg.Journal.Path
			}
			if path == "" {
				return fmt.Errorf("no journal configured")
			}

			store, err := sqlite.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), flavour)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			for _, r := range records {
				fmt.Fprintf(out, "%s %s %s %s\n", r.Flavour, r.Key, r.State, r.Binding)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "journal database (defaults to journal.path from the config)")
	cmd.Flags().StringVar(&flavour, "flavour", "", "only print bindings of this flavour")
	return cmd
}
