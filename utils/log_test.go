package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]LogLevel{
		"trace":    TRACE,
		"DEBUG":    DEBUG,
		" info ":   INFO,
		"warning":  WARN,
		"warn":     WARN,
		"error":    ERROR,
		"critical": CRITICAL,
		"bogus":    INFO,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestWriterLoggerFiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriterLogger(&buf, INFO)

	log.Debug("hidden %d", 1)
	log.Info("shown %d", 2)
	log.Warn("also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] shown 2")
	assert.Contains(t, out, "[WARN] also shown")
	assert.False(t, log.Enabled(DEBUG))
	assert.True(t, log.Enabled(ERROR))

	log.SetMinLevel(TRACE)
	assert.True(t, log.Enabled(TRACE))
}

func TestFileLogger(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.log")
	log, err := NewFileLogger(path, DEBUG, false)
	require.NoError(t, err)
	log.Debug("mode %s", "RECOVERY")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] mode RECOVERY")
}
