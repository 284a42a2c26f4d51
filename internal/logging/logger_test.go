package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	cfgpkg "github.com/bendatsko/dacroq/internal/config"
)

func TestInitWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	logger, err := Init(cfgpkg.LoggingConfig{
		Level:  "debug",
		Format: "json",
		File: cfgpkg.LumberjackConfig{
			Filename: logPath,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info("hello from test")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello from test")
}

func TestInitWithoutFile(t *testing.T) {
	logger, err := Init(cfgpkg.LoggingConfig{Level: "info", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)
}
