package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWriterCopiesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gold_tracker.log")
	var stdout bytes.Buffer

	writer, closer, err := logWriter(Config{File: path}, &stdout)
	require.NoError(t, err)

	logger := zerolog.New(writer)
	logger.Info().Str("component", "test").Msg("harga tersimpan")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "harga tersimpan")
	assert.Contains(t, stdout.String(), "harga tersimpan")
}

func TestLogWriterConsoleFormat(t *testing.T) {
	var stdout bytes.Buffer
	writer, _, err := logWriter(Config{Format: "console"}, &stdout)
	require.NoError(t, err)

	logger := zerolog.New(writer)
	logger.Warn().Msg("no signal")
	out := stdout.String()
	assert.Contains(t, out, "no signal")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
}

func TestNewLoggerLevel(t *testing.T) {
	logger, closer, err := NewLogger(Config{Level: "warn"})
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}
