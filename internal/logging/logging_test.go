package logging_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jollyblade/jollykit/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, logging.ParseLevel(tt.in))
		})
	}
}

func TestValidFormat(t *testing.T) {
	assert.True(t, logging.ValidFormat("json"))
	assert.True(t, logging.ValidFormat("console"))
	assert.True(t, logging.ValidFormat(""))
	assert.False(t, logging.ValidFormat("xml"))
}

func TestValidOutput(t *testing.T) {
	assert.True(t, logging.ValidOutput(""))
	assert.True(t, logging.ValidOutput("stderr"))
	assert.True(t, logging.ValidOutput("STDOUT"))
	assert.False(t, logging.ValidOutput("file"))
}

func TestNew_JSONLevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.Config{Level: "warn", Format: "json"})
	logger = logging.ComponentLogger(logger, "runner")

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"component":"runner"`)
	assert.Contains(t, out, `"message":"shown"`)
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "jollykit.log")
	result := logging.NewLogger(logging.Config{Level: "info", Format: "json", Output: logging.OutputFile, File: path})
	require.True(t, result.UsingFile)
	assert.False(t, result.FallbackUsed)

	result.Logger.Info().Msg("to file")
	require.NoError(t, result.Close())
	require.NoError(t, result.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestNewLogger_FileFallback(t *testing.T) {
	result := logging.NewLogger(logging.Config{Output: logging.OutputFile})
	assert.False(t, result.UsingFile)
	assert.True(t, result.FallbackUsed)
	assert.NotEmpty(t, result.FallbackReason)

	var buf bytes.Buffer
	logging.PrintFallbackWarning(&buf, result.FallbackReason)
	assert.Contains(t, buf.String(), "logging to stderr")
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, logging.TraceIDFromContext(ctx))

	generated := logging.GetOrGenerateTraceID(ctx)
	_, err := ulid.ParseStrict(generated)
	require.NoError(t, err)

	ctx = logging.ContextWithTraceID(ctx, generated)
	assert.Equal(t, generated, logging.GetOrGenerateTraceID(ctx))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	logging.FromContext(ctx).Info().Msg("via context")
	assert.Contains(t, buf.String(), "via context")
}
