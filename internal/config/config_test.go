package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "dacroq-control-plane", cfg.App.Name)
	require.Equal(t, 2_000_000, cfg.Serial.BaudRate)
	require.Equal(t, 100, cfg.Serial.HistoryEntries)
	require.Equal(t, 3, cfg.Session.MaxReconnectAttempts)
	require.False(t, cfg.Auth.AllowInsecureDevFallback)
	require.False(t, cfg.App.IsProduction())
}

func TestIsProduction(t *testing.T) {
	cfg := AppConfig{Env: "production"}
	require.True(t, cfg.IsProduction())

	cfg.Env = "Production"
	require.True(t, cfg.IsProduction())

	cfg.Env = "dev"
	require.False(t, cfg.IsProduction())
}
