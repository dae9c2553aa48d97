package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rustyeddy/tradeview/config"
)

const iso8601 = `\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}`

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"nonsense", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log, err := New(config.LogConfig{Level: tt.level, Encoding: "json"})
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, log.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestJSONOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	log, err := build(config.LogConfig{Level: "info", Encoding: "json"}, []string{path})
	require.NoError(t, err)
	log.Info("list bars", zap.String("symbol", "AAPL"))
	log.Debug("dropped")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "list bars", entry["msg"])
	assert.Equal(t, "AAPL", entry["symbol"])
	assert.Equal(t, "info", entry["level"])
	ts, ok := entry["ts"].(string)
	require.True(t, ok, "ts is an ISO8601 string, not epoch seconds")
	assert.Regexp(t, iso8601, ts)
}

func TestConsoleEncoding(t *testing.T) {
	log, err := New(config.LogConfig{Level: "info", Encoding: "console", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestConsoleUsesSameTimeFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")

	log, err := build(config.LogConfig{Level: "info", Encoding: "console"}, []string{path})
	require.NoError(t, err)
	log.Info("list bars")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Regexp(t, "^"+iso8601, line)
	assert.Contains(t, line, "list bars")
}
