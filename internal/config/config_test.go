package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "https://api-elecciones2024.elnuevodia.com/gobernacion", cfg.Results.URL)
	assert.Equal(t, 30, cfg.Results.PollIntervalSec)
	assert.Equal(t, time.Second, cfg.Results.Tick())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "America/Puerto_Rico", cfg.Display.Timezone)
	assert.Equal(t, "/default-logo.png", cfg.Parties.DefaultLogo)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "tablero", cfg.Redis.KeyPrefix)
	assert.Equal(t, 90, cfg.Health.StaleAfterSec)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TABLERO_ENV", "production")
	t.Setenv("TABLERO_RESULTS_URL", "http://localhost:9999/gobernacion")
	t.Setenv("TABLERO_RESULTS_POLL_INTERVAL_SEC", "10")
	t.Setenv("TABLERO_REDIS_ADDR", "redis:6379")
	t.Setenv("TABLERO_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "http://localhost:9999/gobernacion", cfg.Results.URL)
	assert.Equal(t, 10, cfg.Results.PollIntervalSec)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadRejectsBadSchedule(t *testing.T) {
	t.Setenv("TABLERO_RESULTS_POLL_INTERVAL_SEC", "0")
	t.Setenv("TABLERO_RESULTS_TICK_MS", "-5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval_sec")
	assert.Contains(t, err.Error(), "tick_ms")
}

func TestDisplayLocation(t *testing.T) {
	loc, err := DisplayConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = DisplayConfig{Timezone: "Mars/Olympus_Mons"}.Location()
	assert.Error(t, err)
}
