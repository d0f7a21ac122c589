package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", false)

	logger.Debug().Msg("hidden")
	logger.Info().Str("rule", "api").Msg("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, "api", entry["rule"])
	assert.Contains(t, entry, "time")
}

func TestNew_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", true)
	logger.Debug().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "console", false)
	logger.Info().Msg("listening")

	out := buf.String()
	assert.Contains(t, out, "listening")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))), "console output should not be JSON")
}

func TestAccess(t *testing.T) {
	var buf bytes.Buffer
	access := Access(&buf)
	access.Info().Int("status", 200).Msg("access")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "access", entry["log"])
	assert.EqualValues(t, 200, entry["status"])
}
