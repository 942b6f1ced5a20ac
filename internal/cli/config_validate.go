package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jollyblade/jollykit/internal/config"
)

// newConfigValidateCmd creates the config validate command for validating configuration.
func newConfigValidateCmd(s *session) *cobra.Command {
	var (
		verbose bool
		withSQL bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long: `Validates the effective configuration: the config file, JOLLYKIT_* environment
variables and command-line flags.

This includes:
- Chunk size of at least 1
- Known log level and format
- Non-negative numbers.count
- With --sql, every setting the sql job needs`,
		Example: `  # Validate current configuration
  jollykit config validate

  # Also check the sql job settings
  jollykit config validate --sql --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, s.config(), withSQL, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")
	cmd.Flags().BoolVar(&withSQL, "sql", false, "also validate the sql job settings")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, cfg *config.Config, withSQL, verbose bool) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if withSQL {
		if err := cfg.ValidateSQL(); err != nil {
			return fmt.Errorf("sql configuration validation failed: %w", err)
		}
	}

	cmd.Println("Configuration is valid")

	if verbose {
		printVerboseDetails(cmd, cfg)
	}
	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config) {
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Chunk size: %d\n", cfg.Runner.ChunkSize)
	if cfg.Runner.Name != "" {
		cmd.Printf("  Runner name: %s\n", cfg.Runner.Name)
	}
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	cmd.Printf("  Logging format: %s\n", cfg.Logging.Format)
	if cfg.Logging.File != "" {
		cmd.Printf("  Log file: %s\n", cfg.Logging.File)
	}
	cmd.Printf("  Numbers count: %d\n", cfg.Numbers.Count)
	if cfg.SQL.DatabaseURL == "" {
		cmd.Println("  No database configured")
	} else {
		cmd.Printf("  SQL max connections: %d\n", cfg.SQL.MaxConns)
	}
}
