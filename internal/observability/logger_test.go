package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf, ServiceName: "ocr-pipeline"})

	logger.WithRun("run-1").WithDocument("scan.pdf").Warn().
		Page(3).
		Stage("extract").
		Err(errors.New("timeout")).
		Msg("page failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "ocr-pipeline", entry["service"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "scan.pdf", entry["document"])
	assert.Equal(t, "extract", entry["stage"])
	assert.Equal(t, float64(3), entry["page"])
	assert.Equal(t, "timeout", entry["error"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "page failed", entry["message"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Error().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warning ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("nonsense")
	assert.Error(t, err)

	assert.True(t, ValidLevel("Info"))
	assert.False(t, ValidLevel("verbose"))
	assert.False(t, ValidLevel("disabled"))
}

func TestNewLogger_ConsoleWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "nonsense", Format: "console", Output: &buf, NoColor: true})

	logger.WithOperation("render").Info().Page(2).Msg("page rendered")

	line := buf.String()
	assert.Contains(t, line, "INF")
	assert.Contains(t, line, "page rendered")
	assert.Contains(t, line, "operation=render")
	assert.Contains(t, line, "page=2")
	assert.NotContains(t, line, "\x1b[")
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error().Str("k", "v").Msg("discarded")
	})
}
