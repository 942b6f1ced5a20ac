package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newConfigShowCmd creates the config show command that prints the effective configuration.
func newConfigShowCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Prints the configuration after the config file, JOLLYKIT_* environment variables
and command-line flags have been applied. Database passwords are masked.`,
		Example: `  jollykit config show
  jollykit --chunk-size 100 config show`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := s.config().Marshal()
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
