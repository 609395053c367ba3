// Package main provides the CLI entry point for benchkit, a sequential
// benchmark runner that records one result per benchmark configuration and
// resumes where a previous run stopped.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seantiz/benchkit/internal/backend"
	"github.com/seantiz/benchkit/internal/backend/process"
	"github.com/seantiz/benchkit/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(config.Load())
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg      config.Config
	logLevel string
	logger   *slog.Logger
}

func newRootCmd(cfg config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	root := &cobra.Command{
		Use:   "benchkit",
		Short: "Resumable sequential benchmark runner",
		Long: `Benchkit runs every benchmark configuration of a suite one at a time
under a timeout, classifies each run as success, timeout or failure and
records the outcome. Configurations that already have a record are skipped,
so an interrupted run picks up where it stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := a.cfg.LogLevel
			if a.logLevel != "" {
				level = config.ParseLogLevel(a.logLevel)
			}
			a.logger = config.NewLogger(cmd.ErrOrStderr(), level)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.DBPath, "db", cfg.DBPath,
		"Path to the results database (env BENCHKIT_DB_PATH)")
	flags.StringVar(&a.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (env BENCHKIT_LOG_LEVEL)")

	root.AddCommand(
		newRunCmd(a),
		newResultsCmd(a),
		newServeCmd(a),
		newBackendsCmd(a),
	)

	return root
}

// newRegistry returns the registry of every backend benchkit can run.
func newRegistry(logger *slog.Logger) *backend.Registry {
	reg := backend.NewRegistry()
	reg.Register(process.Kind, process.New(logger))
	return reg
}

func newBackendsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the execution backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, info := range newRegistry(a.logger).List() {
				fmt.Fprintf(out, "%-10s %s\n", info.Kind, info.Capabilities.Description)
			}
			return nil
		},
	}
}
