package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSecrets(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadDefaultsAndEnvOverride(t *testing.T) {
	t.Setenv("AUTH_ACCESS_SECRET", "env-access")
	t.Setenv("AUTH_REFRESH_SECRET", "env-refresh")
	t.Setenv("SERVER_ADDR", ":9999")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "env-access", cfg.Auth.AccessSecret)
	require.Equal(t, "env-refresh", cfg.Auth.RefreshSecret)
	require.Equal(t, ":9999", cfg.Server.Addr)

	require.Equal(t, "clipstream-api", cfg.App.Name)
	require.Equal(t, 60*time.Minute, cfg.Auth.AccessTTL)
	require.Equal(t, 720*time.Hour, cfg.Auth.RefreshTTL)
	require.Equal(t, "/", cfg.Auth.CookiePath)
	require.True(t, cfg.Auth.CookieSecure)
	require.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}
