package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jollyblade/jollykit/internal/logging"
)

// LoggingConfig is the logging section of the configuration.
type LoggingConfig struct {
	// Level is a zerolog level name (trace, debug, info, warn, error).
	Level string `yaml:"level"`

	// Format is "console" or "json".
	Format string `yaml:"format"`

	// Output is "stderr" (default) or "stdout". Ignored when File is set.
	Output string `yaml:"output,omitempty"`

	// File, when set, sends logs to this file instead of stderr.
	File string `yaml:"file,omitempty"`

	// Caller adds file:line to every entry.
	Caller bool `yaml:"caller,omitempty"`
}

// ToLoggingConfig converts LoggingConfig to logging.Config for use with
// the internal/logging package.
//
// The conversion applies these rules:
//   - Level, Format and Caller are copied directly
//   - If File is set, Output becomes "file" and File is passed through
//   - If File is empty and Output is "stdout", logs go to stdout
//   - Otherwise Output defaults to "stderr"
func (lc *LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	switch {
	case lc.File != "":
		output = logging.OutputFile
	case strings.EqualFold(lc.Output, logging.OutputStdout):
		output = logging.OutputStdout
	}

	return logging.Config{
		Level:  lc.Level,
		Format: lc.Format,
		Output: output,
		File:   lc.File,
		Caller: lc.Caller,
	}
}

// EnsureLogDir creates the parent directory of the configured log file. It does nothing when
// no log file is configured.
func (lc *LoggingConfig) EnsureLogDir() error {
	if lc.File == "" {
		return nil
	}
	logDir := filepath.Dir(lc.File)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", logDir, err)
	}
	return nil
}
