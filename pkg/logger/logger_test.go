package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	t.Cleanup(func() { _ = Init(DefaultConfig()) })

	testCases := []struct {
		name     string
		config   Config
		expected zerolog.Level
		wantErr  bool
	}{
		{"defaults", DefaultConfig(), zerolog.InfoLevel, false},
		{"empty level", Config{}, zerolog.InfoLevel, false},
		{"warn", Config{Level: "warn"}, zerolog.WarnLevel, false},
		{"debug flag wins", Config{Level: "error", Debug: true}, zerolog.DebugLevel, false},
		{"console", Config{Level: "debug", Console: true, Output: "stdout"}, zerolog.DebugLevel, false},
		{"bad level", Config{Level: "loud"}, zerolog.NoLevel, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Init(tc.config)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, Get().GetLevel())
		})
	}
}

func TestInit_FileOutput(t *testing.T) {
	t.Cleanup(func() { _ = Init(DefaultConfig()) })

	path := filepath.Join(t.TempDir(), "devapps.log")
	require.NoError(t, Init(Config{Level: "info", Output: path}))

	Info().Str("file", "a.pb.gz").Msg("written")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"written"`)
}

func TestNew_Component(t *testing.T) {
	t.Cleanup(func() { _ = Init(DefaultConfig()) })

	var buf bytes.Buffer
	require.NoError(t, Init(Config{Level: "debug"}))
	SetOutput(&buf)

	l := New("stream")
	l.Debug().Int("records", 3).Msg("closed container")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stream", entry["component"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, float64(3), entry["records"])
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { _ = Init(DefaultConfig()) })

	SetLevel(zerolog.ErrorLevel)
	assert.Equal(t, zerolog.ErrorLevel, Get().GetLevel())

	var buf bytes.Buffer
	SetOutput(&buf)
	Warn().Msg("dropped")
	assert.Empty(t, buf.String())
}
