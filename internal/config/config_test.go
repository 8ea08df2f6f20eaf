package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/skycast/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, config.BackendRedis, cfg.PrefsBackend)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 10*time.Minute, cfg.PanelCacheTTL)
	assert.Equal(t, config.GeoModeIP, cfg.GeolocationMode)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PREFS_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := config.Load()
	require.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/skycast")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.BackendPostgres, cfg.PrefsBackend)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("REFRESH_INTERVAL", "2m")
	t.Setenv("GEOLOCATION_MODE", "STATIC")
	t.Setenv("GEOLOCATION_LAT", "48.8566")
	t.Setenv("GEOLOCATION_LON", "2.3522")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, config.GeoModeStatic, cfg.GeolocationMode)
	assert.InDelta(t, 48.8566, cfg.GeolocationLat, 1e-9)
	assert.InDelta(t, 2.3522, cfg.GeolocationLon, 1e-9)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad duration", "REFRESH_INTERVAL", "soon"},
		{"zero interval", "REFRESH_INTERVAL", "0s"},
		{"bad backend", "PREFS_BACKEND", "sqlite"},
		{"bad geo mode", "GEOLOCATION_MODE", "gps"},
		{"latitude out of range", "GEOLOCATION_LAT", "123"},
		{"bad log level", "LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.Load()
			require.Error(t, err)
		})
	}
}
