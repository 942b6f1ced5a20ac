// Package logging builds the zerolog loggers used by jollykit commands and jobs.
//
// Loggers are configured from a Config (usually bridged from the YAML configuration), carry a
// component field, and are propagated through context.Context with zerolog's context helpers.
// Every command invocation gets a ULID trace id so the runner's per-run logs can be correlated
// with the command that started them.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output and format names accepted in Config.
const (
	FormatConsole = "console"
	FormatJSON    = "json"

	OutputStderr = "stderr"
	OutputStdout = "stdout"
	OutputFile   = "file"
)

// Config describes how to build a logger.
type Config struct {
	// Level is a zerolog level name; unparsable values fall back to info.
	Level string

	// Format is "console" for human-readable output or "json".
	Format string

	// Output is "stderr", "stdout" or "file".
	Output string

	// File is the log path used when Output is "file".
	File string

	// Caller adds the caller's file and line to each entry.
	Caller bool
}

// Result is the outcome of NewLogger.
type Result struct {
	Logger zerolog.Logger

	// UsingFile is true when entries go to FilePath.
	UsingFile bool
	FilePath  string

	// FallbackUsed is true when file output was requested but stderr is used instead.
	FallbackUsed   bool
	FallbackReason string

	file *os.File
}

// Close releases the log file, if one was opened.
func (r *Result) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// ParseLevel parses level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// ValidLevel reports whether level names a zerolog level.
func ValidLevel(level string) bool {
	_, err := zerolog.ParseLevel(strings.ToLower(level))
	return err == nil
}

// ValidFormat reports whether format is a known output format. Empty selects the default.
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case "", FormatConsole, "text", FormatJSON:
		return true
	}
	return false
}

// ValidOutput reports whether output names a console stream. Empty selects stderr.
func ValidOutput(output string) bool {
	switch strings.ToLower(output) {
	case "", OutputStderr, OutputStdout:
		return true
	}
	return false
}

// NewLogger builds a logger from cfg. When the log file cannot be opened it falls back to
// stderr and records why, rather than failing the command.
func NewLogger(cfg Config) Result {
	var result Result
	var out io.Writer

	switch cfg.Output {
	case OutputStdout:
		out = os.Stdout
	case OutputFile:
		f, err := openLogFile(cfg.File)
		if err != nil {
			result.FallbackUsed = true
			result.FallbackReason = err.Error()
			out = os.Stderr
			break
		}
		result.file = f
		result.UsingFile = true
		result.FilePath = cfg.File
		out = f
	default:
		out = os.Stderr
	}

	result.Logger = New(out, cfg)
	return result
}

// New builds a logger writing to w, honouring cfg's level, format and caller settings.
func New(w io.Writer, cfg Config) zerolog.Logger {
	if strings.ToLower(cfg.Format) != FormatJSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// ComponentLogger returns logger tagged with component.
func ComponentLogger(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// PrintLogPathMessage tells the user where logs are written.
func PrintLogPathMessage(w io.Writer, path string) {
	_, _ = fmt.Fprintf(w, "Logging to %s\n", path)
}

// PrintFallbackWarning tells the user that file logging was unavailable.
func PrintFallbackWarning(w io.Writer, reason string) {
	_, _ = fmt.Fprintf(w, "Warning: file logging unavailable (%s), logging to stderr\n", reason)
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("no log file configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
