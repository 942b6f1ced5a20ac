package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/jollyblade/jollykit/internal/config"
	"github.com/jollyblade/jollykit/internal/jobs/numbers"
	"github.com/jollyblade/jollykit/internal/jobs/sqlcopy"
	"github.com/jollyblade/jollykit/internal/logging"
	"github.com/jollyblade/jollykit/pkg/chunk"
)

// ExitCodeRunFailed is the exit code for a run that stopped on a run-fatal failure.
const ExitCodeRunFailed = 2

// RunFailedError reports a run that stopped before processing every chunk.
type RunFailedError struct {
	ExitCode int
	Name     string
	Err      error
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("%s run failed: %v", e.Name, e.Err)
}

func (e *RunFailedError) Unwrap() error {
	return e.Err
}

// runFlags are shared by every run subcommand.
type runFlags struct {
	progress bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.progress, "progress", false, "draw a progress bar on stderr after each chunk")
}

func newRunNumbersCmd(s *session) *cobra.Command {
	var (
		flags runFlags
		count int
	)
	cmd := &cobra.Command{
		Use:   "numbers",
		Short: "Run the sample numbers job",
		Long: `Processes the ids 0..count-1 in chunks. Each id is formatted and parsed back;
a few well-known ids are recorded as non-fatal errors so the error report can be seen.`,
		Example: `  jollykit run numbers --count 100000 --chunk-size 500`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := s.config()
			if cmd.Flags().Changed("count") {
				cfg.Numbers.Count = count
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			warnings := cfg.Numbers.Warnings
			if warnings == nil {
				warnings = numbers.DefaultWarnings()
			}
			job := numbers.New(cfg.Numbers.Count, warnings)
			return runJob(cmd, cfg, job, flags)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&count, "count", config.DefaultNumbersCount, "number of ids to process")
	return cmd
}

func newRunSQLCmd(s *session) *cobra.Command {
	var (
		flags       runFlags
		databaseURL string
	)
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Copy rows between PostgreSQL queries",
		Long: `Runs sql.ids_query, then for every chunk of ids runs sql.select_query with the ids as $1
and sql.apply_statement once per returned row, one transaction per chunk.
Rows that violate a constraint are skipped and reported.`,
		Example: `  jollykit run sql --database-url postgres://app@localhost/app --chunk-size 1000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := s.config()
			if cmd.Flags().Changed("database-url") {
				cfg.SQL.DatabaseURL = databaseURL
			}
			if err := errors.Join(cfg.Validate(), cfg.ValidateSQL()); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runSQL(cmd, cfg, flags)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL")
	return cmd
}

func runSQL(cmd *cobra.Command, cfg *config.Config, flags runFlags) error {
	ctx := cmd.Context()

	poolConfig, err := pgxpool.ParseConfig(cfg.SQL.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parsing database URL: %w", err)
	}
	if cfg.SQL.MaxConns > 0 {
		poolConfig.MaxConns = cfg.SQL.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err = pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	job := sqlcopy.New(pool, sqlcopy.Queries{
		IDs:    cfg.SQL.IDsQuery,
		Select: cfg.SQL.SelectQuery,
		Apply:  cfg.SQL.ApplyStatement,
	})
	defer func() {
		// The run context may already be cancelled; the rollback still has to reach the server.
		if closeErr := job.Close(context.WithoutCancel(ctx)); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("could not roll back open chunk transaction")
		}
	}()

	return runJob(cmd, cfg, job, flags)
}

// runJob runs job with the configured runner options, prints the summary and maps a run-fatal
// failure to a RunFailedError.
func runJob[K, T, R any](cmd *cobra.Command, cfg *config.Config, job chunk.Job[K, T, R], flags runFlags) error {
	ctx := cmd.Context()

	opts := []chunk.Option{
		chunk.WithChunkSize(cfg.Runner.ChunkSize),
		chunk.WithLogger(*logging.FromContext(ctx)),
	}
	if cfg.Runner.Name != "" {
		opts = append(opts, chunk.WithName(cfg.Runner.Name))
	}
	if flags.progress && isWriterTerminal(cmd.ErrOrStderr()) {
		opts = append(opts, chunk.WithHooks(newProgressBar(cmd.ErrOrStderr()).Hooks()))
	}

	runner, err := chunk.New(job, opts...)
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	res := runner.Execute(ctx)
	summary := NewSummary(runner.Name(), res)
	summary.TraceID = logging.TraceIDFromContext(ctx)
	if err = RenderSummary(cmd.OutOrStdout(), summary); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	if res.Err != nil {
		return &RunFailedError{ExitCode: ExitCodeRunFailed, Name: runner.Name(), Err: res.Err}
	}
	return nil
}
