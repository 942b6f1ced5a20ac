// Package config loads jollykit configuration.
//
// Configuration starts from built-in defaults, is overlaid section by section from a YAML file
// (~/.jollykit/config.yaml unless overridden), and finally from JOLLYKIT_* environment variables.
// CLI flags are applied last by the cli package.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/jollyblade/jollykit/internal/logging"
	"github.com/jollyblade/jollykit/pkg/chunk"
)

// Environment variables read by ApplyEnv.
const (
	EnvConfig      = "JOLLYKIT_CONFIG"
	EnvHome        = "JOLLYKIT_HOME"
	EnvChunkSize   = "JOLLYKIT_CHUNK_SIZE"
	EnvLogLevel    = "JOLLYKIT_LOG_LEVEL"
	EnvLogFormat   = "JOLLYKIT_LOG_FORMAT"
	EnvDatabaseURL = "JOLLYKIT_DATABASE_URL"
)

// Defaults.
const (
	DefaultNumbersCount = 100000
	DefaultSQLMaxConns  = 4
)

// Validation errors.
var (
	ErrInvalidChunkSize = errors.New("runner.chunk_size must be at least 1")
	ErrInvalidLogLevel  = errors.New("logging.level is not a valid level")
	ErrInvalidLogFormat = errors.New("logging.format must be console or json")
	ErrInvalidLogOutput = errors.New("logging.output must be stderr or stdout")
	ErrInvalidCount     = errors.New("numbers.count must not be negative")
	ErrMissingSQL       = errors.New("sql configuration incomplete")
)

// Config is the full jollykit configuration.
type Config struct {
	Runner  RunnerConfig  `yaml:"runner"`
	Logging LoggingConfig `yaml:"logging"`
	Numbers NumbersConfig `yaml:"numbers"`
	SQL     SQLConfig     `yaml:"sql"`
}

// RunnerConfig configures the chunk runner.
type RunnerConfig struct {
	// ChunkSize is the number of ids per chunk.
	ChunkSize int `yaml:"chunk_size"`

	// Name overrides the job's own name in logs and reports.
	Name string `yaml:"name,omitempty"`
}

// NumbersConfig configures the sample numbers job.
type NumbersConfig struct {
	Count    int              `yaml:"count"`
	Warnings map[int64]string `yaml:"warnings,omitempty"`
}

// SQLConfig configures the PostgreSQL copy job.
type SQLConfig struct {
	DatabaseURL    string `yaml:"database_url,omitempty"`
	IDsQuery       string `yaml:"ids_query,omitempty"`
	SelectQuery    string `yaml:"select_query,omitempty"`
	ApplyStatement string `yaml:"apply_statement,omitempty"`
	MaxConns       int32  `yaml:"max_conns"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		Runner: RunnerConfig{
			ChunkSize: chunk.DefaultChunkSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
		Numbers: NumbersConfig{
			Count: DefaultNumbersCount,
		},
		SQL: SQLConfig{
			MaxConns: DefaultSQLMaxConns,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path. A missing file is not an
// error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := New()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("checking config file %s: %w", path, err)
	}

	if err := ShallowMergeYAML(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides configuration from environment variables looked up with lookupEnv.
func (c *Config) ApplyEnv(lookupEnv func(string) (string, bool)) error {
	if v, ok := lookupEnv(EnvChunkSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s=%q: %w", EnvChunkSize, v, err)
		}
		c.Runner.ChunkSize = n
	}
	if v, ok := lookupEnv(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookupEnv(EnvLogFormat); ok && v != "" {
		c.Logging.Format = v
	}
	if v, ok := lookupEnv(EnvDatabaseURL); ok && v != "" {
		c.SQL.DatabaseURL = v
	}
	return nil
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.Runner.ChunkSize < chunk.MinChunkSize {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, c.Runner.ChunkSize))
	}
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level))
	}
	if !logging.ValidFormat(c.Logging.Format) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format))
	}
	if !logging.ValidOutput(c.Logging.Output) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogOutput, c.Logging.Output))
	}
	if c.Numbers.Count < 0 {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidCount, c.Numbers.Count))
	}
	return errors.Join(errs...)
}

// ValidateSQL checks the sql section needed by the sql job.
func (c *Config) ValidateSQL() error {
	var missing []error
	if c.SQL.DatabaseURL == "" {
		missing = append(missing, fmt.Errorf("%w: database_url", ErrMissingSQL))
	}
	if c.SQL.IDsQuery == "" {
		missing = append(missing, fmt.Errorf("%w: ids_query", ErrMissingSQL))
	}
	if c.SQL.SelectQuery == "" {
		missing = append(missing, fmt.Errorf("%w: select_query", ErrMissingSQL))
	}
	if c.SQL.ApplyStatement == "" {
		missing = append(missing, fmt.Errorf("%w: apply_statement", ErrMissingSQL))
	}
	return errors.Join(missing...)
}

// Marshal renders the configuration as YAML with the database URL's password masked.
func (c *Config) Marshal() ([]byte, error) {
	out := *c
	out.SQL.DatabaseURL = redactURL(c.SQL.DatabaseURL)
	return yaml.Marshal(&out)
}
