package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/benchkit/internal/api"
	"github.com/seantiz/benchkit/internal/engine"
	"github.com/seantiz/benchkit/internal/model"
	"github.com/seantiz/benchkit/internal/report"
	"github.com/seantiz/benchkit/internal/store"
	"github.com/seantiz/benchkit/internal/suite"
)

type runConfig struct {
	suitePath      string
	dbPath         string
	workDir        string
	exitOnError    bool
	defaultTimeout time.Duration
	listenAddr     string
	outputJSON     bool
}

func newRunCmd(a *app) *cobra.Command {
	var (
		noExitOnError bool
		cfg           runConfig
	)

	cmd := &cobra.Command{
		Use:   "run <suite.yaml>",
		Short: "Run every benchmark of a suite that has no record yet",
		Long: `Expand the suite into benchmark configurations, skip those already
recorded in the database and run the rest sequentially. Results are saved
when the run ends, including when it is interrupted or aborted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.suitePath = args[0]
			cfg.dbPath = a.cfg.DBPath
			cfg.exitOnError = a.cfg.ExitOnError && !noExitOnError
			return runSuite(cmd.Context(), a.logger, cmd.OutOrStdout(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.workDir, "workdir", a.cfg.WorkDir,
		"Root directory for benchmark working directories (env BENCHKIT_WORKDIR)")
	flags.BoolVar(&noExitOnError, "no-exit-on-error", false,
		"Record failed benchmarks and keep going instead of aborting")
	flags.DurationVar(&cfg.defaultTimeout, "default-timeout", a.cfg.DefaultTimeout,
		"Timeout for benchmarks without their own timeout_s")
	flags.StringVar(&cfg.listenAddr, "listen", "",
		"Serve the results API on this address while running")
	flags.BoolVar(&cfg.outputJSON, "json", false,
		"Output results as JSON instead of table")

	return cmd
}

func runSuite(ctx context.Context, logger *slog.Logger, out io.Writer, cfg runConfig) (err error) {
	s, err := suite.Load(cfg.suitePath)
	if err != nil {
		return err
	}

	db, err := store.NewSQLiteStore(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	registry := newRegistry(logger)
	runner, err := engine.NewRunner(db, registry, suite.NewMaterializer(s).Materialize, cfg.workDir, logger,
		engine.WithExitOnError(cfg.exitOnError),
		engine.WithDefaultTimeout(cfg.defaultTimeout),
	)
	if err != nil {
		return err
	}

	if cfg.listenAddr != "" {
		serveCtx, stopServing := context.WithCancel(ctx)
		served := make(chan error, 1)
		go func() {
			served <- api.NewServer(cfg.listenAddr, db, registry, logger).Run(serveCtx)
		}()
		defer func() {
			stopServing()
			if serveErr := <-served; serveErr != nil && err == nil {
				err = serveErr
			}
		}()
	}

	ids := s.Identifiers()
	logger.InfoContext(ctx, "starting run",
		slog.String("suite", s.Name),
		slog.Int("benchmarks", len(ids)),
		slog.String("run_id", runner.RunID()),
		slog.String("workdir", runner.WorkDir()),
	)

	// Whatever happens below, keep the results of benchmarks that finished.
	defer func() {
		if saveErr := runner.Save(context.WithoutCancel(ctx)); saveErr != nil && err == nil {
			err = saveErr
		}
	}()

	records := make([]*model.Record, 0, len(ids))
	for step, stepErr := range runner.Compute(ctx, ids) {
		if step.Result != nil && !cfg.outputJSON {
			fmt.Fprintf(out, "%-50s %s\n", step.Identifier, step.Result)
		}
		if stepErr != nil {
			return stepErr
		}
		rec := model.RecordFor(step.Identifier, step.Result, runner.RunID(), time.Now().UTC())
		records = append(records, &rec)
	}

	if len(records) == 0 && !cfg.outputJSON {
		fmt.Fprintln(out, "Nothing to run: every benchmark already has a record.")
		return nil
	}

	if cfg.outputJSON {
		if err := report.GenerateJSON(out, records); err != nil {
			return fmt.Errorf("generate JSON report: %w", err)
		}
	} else {
		fmt.Fprintln(out)
		if err := report.Generate(out, records); err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
	}

	logger.InfoContext(ctx, "run complete", slog.Int("executed", len(records)))

	return nil
}
