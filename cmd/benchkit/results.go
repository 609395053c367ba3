package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seantiz/benchkit/internal/api"
	"github.com/seantiz/benchkit/internal/report"
	"github.com/seantiz/benchkit/internal/store"
)

func newResultsCmd(a *app) *cobra.Command {
	var (
		limit      int
		offset     int
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show recorded benchmark results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := store.NewSQLiteStore(a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			records, total, err := db.ListRecords(cmd.Context(), limit, offset)
			if err != nil {
				return fmt.Errorf("list records: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return report.GenerateJSON(out, records)
			}
			if len(records) == 0 {
				fmt.Fprintf(out, "No records in %s.\n", a.cfg.DBPath)
				return nil
			}
			if err := report.Generate(out, records); err != nil {
				return fmt.Errorf("generate report: %w", err)
			}
			if shown := offset + len(records); shown < total {
				fmt.Fprintf(out, "\nShowing %d of %d record(s); use --offset to see more.\n", len(records), total)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&limit, "limit", 100, "Maximum number of records to show")
	flags.IntVar(&offset, "offset", 0, "Number of records to skip")
	flags.BoolVar(&outputJSON, "json", false, "Output results as JSON instead of table")

	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded results over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := store.NewSQLiteStore(a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			a.logger.Info("benchkit: starting",
				"listen_addr", listenAddr,
				"db_path", a.cfg.DBPath,
			)
			return api.NewServer(listenAddr, db, newRegistry(a.logger), a.logger).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", a.cfg.ListenAddr,
		"Address to listen on (env BENCHKIT_LISTEN_ADDR)")

	return cmd
}
