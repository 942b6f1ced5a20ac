package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jollyblade/jollykit/internal/config"
	"github.com/jollyblade/jollykit/pkg/chunk"
)

// newTestRootCmd creates a root command whose config file is path and whose environment is env.
// It returns the command and a buffer that receives all output.
func newTestRootCmd(t *testing.T, path string, env map[string]string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "absent.yaml")
	}
	lookup := func(k string) (string, bool) {
		if k == config.EnvConfig {
			return path, true
		}
		v, ok := env[k]
		return v, ok
	}

	buf := &bytes.Buffer{}
	cmd := NewRootCmdWithEnv("test", lookup)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd, buf
}

func runTestRoot(t *testing.T, path string, env map[string]string, args ...string) (string, error) {
	t.Helper()
	cmd, buf := newTestRootCmd(t, path, env)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestConfigShow_Precedence(t *testing.T) {
	path := writeConfig(t, `
runner:
  chunk_size: 50
logging:
  level: warn
  format: console
`)

	out, err := runTestRoot(t, path, nil, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "chunk_size: 50")
	assert.Contains(t, out, "level: warn")

	env := map[string]string{config.EnvChunkSize: "75", config.EnvLogLevel: "error"}
	out, err = runTestRoot(t, path, env, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "chunk_size: 75")
	assert.Contains(t, out, "level: error")

	out, err = runTestRoot(t, path, env, "--chunk-size", "100", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "chunk_size: 100")
}

func TestConfigShow_MasksPassword(t *testing.T) {
	for _, url := range []string{
		"postgres://app:hunter2@db/app",
		"host=db user=app password=hunter2 dbname=app",
		"host=db user=app password='hunter2' dbname=app",
	} {
		env := map[string]string{config.EnvDatabaseURL: url}
		out, err := runTestRoot(t, "", env, "config", "show")
		require.NoError(t, err)
		assert.NotContains(t, out, "hunter2", url)
		assert.Contains(t, out, "xxxxx", url)
	}
}

func TestConfigValidate(t *testing.T) {
	out, err := runTestRoot(t, "", nil, "--log-level", "error", "config", "validate", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "Chunk size: 500")
	assert.Contains(t, out, "No database configured")

	_, err = runTestRoot(t, "", nil, "--chunk-size", "0", "config", "validate")
	require.ErrorIs(t, err, config.ErrInvalidChunkSize)

	_, err = runTestRoot(t, "", nil, "config", "validate", "--sql")
	require.ErrorIs(t, err, config.ErrMissingSQL)
}

func TestConfig_BadFile(t *testing.T) {
	path := writeConfig(t, "runner: [unclosed")
	_, err := runTestRoot(t, path, nil, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestRunNumbers(t *testing.T) {
	out, err := runTestRoot(t, "", nil,
		"--log-level", "error", "--chunk-size", "100", "run", "numbers", "--count", "1000")
	require.NoError(t, err)

	assert.Contains(t, out, "RUN SUMMARY")
	assert.Contains(t, out, "numbers")
	assert.Contains(t, out, "1,000 records from 1,000 ids")
	assert.Contains(t, out, "10 of 10")
	assert.Contains(t, out, "2 (1 distinct)")
	assert.Contains(t, out, "Trace ID:")
}

func TestRunNumbers_WarningsFromConfig(t *testing.T) {
	path := writeConfig(t, `
runner:
  chunk_size: 10
  name: nightly
numbers:
  count: 30
  warnings:
    3: odd
    5: odd
    6: even
`)
	out, err := runTestRoot(t, path, nil, "--log-level", "error", "run", "numbers")
	require.NoError(t, err)
	assert.Contains(t, out, "nightly")
	assert.Contains(t, out, "30 records from 30 ids")
	assert.Contains(t, out, "3 (2 distinct)")
}

func TestRunNumbers_InvalidConfig(t *testing.T) {
	_, err := runTestRoot(t, "", nil, "--log-level", "error", "run", "numbers", "--count", "-5")
	require.ErrorIs(t, err, config.ErrInvalidCount)
}

func TestRunSQL_RequiresConfig(t *testing.T) {
	_, err := runTestRoot(t, "", nil, "--log-level", "error", "run", "sql")
	require.ErrorIs(t, err, config.ErrMissingSQL)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRunFailedError(t *testing.T) {
	cause := &chunk.StageError{Stage: chunk.StageMap, Chunk: 2, Err: errors.New("boom")}
	err := error(&RunFailedError{ExitCode: ExitCodeRunFailed, Name: "numbers", Err: cause})

	assert.Equal(t, "numbers run failed: map failed on chunk 2: boom", err.Error())

	var stageErr *chunk.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, 2, stageErr.Chunk)

	var runErr *RunFailedError
	require.ErrorAs(t, errors.Join(errors.New("outer"), err), &runErr)
	assert.Equal(t, ExitCodeRunFailed, runErr.ExitCode)
}

func TestRenderSummary_Plain(t *testing.T) {
	report := chunk.NewErrorReport("numbers")
	report.Append("a")
	report.Append("a")
	report.Append("b")

	s := NewSummary("numbers", chunk.Result{
		RunID:       "01J0000000000000000000000",
		Processed:   12345,
		IDs:         12345,
		Chunks:      3,
		TotalChunks: 25,
		Report:      report,
		Duration:    1500 * time.Millisecond,
		Err:         &chunk.StageError{Stage: chunk.StageResolve, Chunk: 4, Err: errors.New("db down")},
	})

	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, s))
	out := buf.String()

	assert.Contains(t, out, "Processor: numbers\n")
	assert.Contains(t, out, "Run ID:    01J0000000000000000000000\n")
	assert.Contains(t, out, "Processed: 12,345 records from 12,345 ids\n")
	assert.Contains(t, out, "Chunks:    3 of 25\n")
	assert.Contains(t, out, "Elapsed:   1.5s\n")
	assert.Contains(t, out, "Errors:    3 (2 distinct)\n")
	assert.Contains(t, out, "Failed:    resolve failed on chunk 4: db down\n")
}

func TestRenderStyledSummary(t *testing.T) {
	var buf bytes.Buffer
	s := Summary{Name: "numbers", Processed: 10, IDs: 10, Chunks: 1, TotalChunks: 1}
	require.NoError(t, renderStyledSummary(&buf, s))
	assert.Contains(t, buf.String(), "RUN SUMMARY")
	assert.Contains(t, buf.String(), "numbers")
}

func TestProgressBar_Draws(t *testing.T) {
	var buf bytes.Buffer
	bar := newProgressBar(&buf)
	hooks := bar.Hooks()
	require.NotNil(t, hooks.OnChunkFinished)
	assert.Nil(t, hooks.OnRunStart)

	job := chunk.Funcs[int, int, int]{
		Fetch: func(_ context.Context) ([]int, error) { return []int{1, 2, 3, 4}, nil },
		Resolve: func(_ context.Context, ids []int) ([]int, error) {
			return ids, nil
		},
		Map: func(_ context.Context, v int, _ *chunk.ErrorReport) (int, error) { return v, nil },
	}
	runner, err := chunk.New[int, int, int](job, chunk.WithChunkSize(2), chunk.WithHooks(hooks),
		chunk.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, 4, runner.Run(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "1/2 chunks")
	assert.Contains(t, out, "2/2 chunks")
	assert.Contains(t, out, "\r")
}
