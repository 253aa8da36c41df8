package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/echobuf/internal/config"
	"github.com/calvinalkan/echobuf/internal/logging"
)

func Test_New_Writes_JSON_To_Stderr_When_No_File_Configured(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer

	logger, err := logging.New(config.Log{Level: "info", Format: "json"}, &stderr)
	require.NoError(t, err)

	logger.Info("slot created")
	logger.Debug("hidden")
	require.NoError(t, logger.Close())

	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	require.Len(t, lines, 1, "debug entries should be filtered at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "slot created", entry["msg"])
	assert.Equal(t, "info", entry["level"])
}

func Test_New_Writes_To_Rotating_File_When_File_Configured(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "echobuf.log")

	var stderr bytes.Buffer

	logger, err := logging.New(config.Log{Level: "debug", Format: "console", File: path, MaxSizeMB: 1}, &stderr)
	require.NoError(t, err)

	logger.Warn("persist failed")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err, "log file should exist")
	assert.Contains(t, string(data), "persist failed")
	assert.Contains(t, string(data), "WARN")
	assert.Empty(t, stderr.String(), "file logging should not write to stderr")
}

func Test_New_Returns_Error_When_Level_Or_Format_Invalid(t *testing.T) {
	t.Parallel()

	_, err := logging.New(config.Log{Level: "loud"}, &bytes.Buffer{})
	require.Error(t, err)

	_, err = logging.New(config.Log{Level: "info", Format: "xml"}, &bytes.Buffer{})
	require.ErrorIs(t, err, config.ErrInvalidLogConfig)
}
