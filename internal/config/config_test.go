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

	assert.Equal(t, "3001", cfg.HTTP.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.HTTP.AllowOrigins)
	assert.Equal(t, time.Minute, cfg.Presence.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.Presence.InactiveThreshold)
	assert.Equal(t, 10.0, cfg.Presence.NotifyRadiusKm)
	assert.Equal(t, 5, cfg.Presence.DefaultRadiusKm)
	assert.Empty(t, cfg.AMQP.URL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("SWEEP_INTERVAL", "15s")
	t.Setenv("INACTIVE_THRESHOLD", "2m")
	t.Setenv("NOTIFY_RADIUS_KM", "2.5")
	t.Setenv("DEBUG_ROUTES", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowOrigins)
	assert.Equal(t, 15*time.Second, cfg.Presence.SweepInterval)
	assert.Equal(t, 2*time.Minute, cfg.Presence.InactiveThreshold)
	assert.Equal(t, 2.5, cfg.Presence.NotifyRadiusKm)
	assert.True(t, cfg.Service.DebugRoutes)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SEND_BUFFER", "lots")
	t.Setenv("SWEEP_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.WS.SendBuffer)
	assert.Equal(t, time.Minute, cfg.Presence.SweepInterval)
}

func TestLoadRejectsUnsupportedDefaultRadius(t *testing.T) {
	t.Setenv("DEFAULT_RADIUS_KM", "3")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_RADIUS_KM")
}
