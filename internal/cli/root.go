package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jollyblade/jollykit/internal/config"
	"github.com/jollyblade/jollykit/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// session holds what the root command resolves before any subcommand runs.
type session struct {
	lookupEnv func(string) (string, bool)
	cfg       *config.Config
	logResult *logging.Result
}

// config returns the resolved configuration, or the defaults when PersistentPreRunE has not run.
func (s *session) config() *config.Config {
	if s.cfg == nil {
		s.cfg = config.New()
	}
	return s.cfg
}

// NewRootCmd creates the root Cobra command for the jollykit CLI.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command with an explicit env lookup for testability.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	s := &session{lookupEnv: lookupEnv}

	cmd := &cobra.Command{
		Use:           "jollykit",
		Short:         "Chunked batch processing",
		Long:          "jollykit: run id-driven jobs in fixed-size chunks and report what went wrong",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, lookupEnv)
			if err != nil {
				return err
			}
			s.cfg = cfg

			result := setupLogging(cmd, cfg)
			s.logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(cmd, s.logResult)
		},
	}

	cmd.PersistentFlags().String("config", "", "config file (default ~/.jollykit/config.yaml)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "", "log format (console, json)")
	cmd.PersistentFlags().Int("chunk-size", 0, "number of ids per chunk (overrides config and env)")
	cmd.AddCommand(newRunCmd(s), newConfigCmd(s))

	return cmd
}

const rootCmdExample = `  # Run the sample numbers job with the default chunk size
  jollykit run numbers

  # Run it over 5,000 ids in chunks of 250 with a progress bar
  jollykit run numbers --count 5000 --chunk-size 250 --progress

  # Copy rows between PostgreSQL queries configured in ~/.jollykit/config.yaml
  jollykit run sql --database-url postgres://localhost/app

  # Show the effective configuration
  jollykit config show`

// loadConfig resolves the config file, then applies environment variables and flags in that order.
func loadConfig(cmd *cobra.Command, lookupEnv func(string) (string, bool)) (*config.Config, error) {
	configFlag, _ := cmd.Flags().GetString("config")
	path := config.ResolveConfigPath(configFlag, lookupEnv)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ApplyEnv(lookupEnv); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
	}
	if flags.Changed("chunk-size") {
		cfg.Runner.ChunkSize, _ = flags.GetInt("chunk-size")
	}
	return cfg, nil
}

// newRunCmd creates the run command group with one subcommand per job.
func newRunCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{Use: "run", Short: "Run a chunked job"}
	cmd.AddCommand(newRunNumbersCmd(s), newRunSQLCmd(s))
	return cmd
}

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration commands"}
	cmd.AddCommand(newConfigShowCmd(s), newConfigValidateCmd(s))
	return cmd
}
