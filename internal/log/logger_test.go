package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutput_JSONFields(t *testing.T) {
	t.Cleanup(Close)
	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, SetLevel("info"))

	Debug("hidden")
	Info("ingest: batch done", "added", 2, "batch", "b1")
	Warn("odd", "key")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "ingest: batch done", first["message"])
	assert.EqualValues(t, 2, first["added"])
	assert.Equal(t, "b1", first["batch"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "(MISSING)", second["key"])
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(Close)
	var buf bytes.Buffer
	SetOutput(&buf)

	require.NoError(t, SetLevel("ERROR"))
	Warn("dropped")
	Error("kept")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))

	assert.Error(t, SetLevel("loud"))
}

func TestSetFileOutput(t *testing.T) {
	t.Cleanup(Close)
	path := filepath.Join(t.TempDir(), "gamelogs.log")
	require.NoError(t, SetFileOutput(path))
	require.NoError(t, SetLevel("debug"))
	Debug("to file", "n", 1)
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}
