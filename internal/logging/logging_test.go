package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = ParseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWithWriters_FansOut(t *testing.T) {
	var console, file bytes.Buffer
	logger := NewWithWriters(&console, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("job completed", "job_id", 7)

	assert.Contains(t, console.String(), "job completed")
	assert.Contains(t, console.String(), "job_id=7")
	assert.NotContains(t, console.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "job completed", entry["msg"])
	assert.Equal(t, float64(7), entry["job_id"])
}
