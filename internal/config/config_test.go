package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "0 8 * * *", cfg.ReminderCron)
	assert.Equal(t, "@hourly", cfg.RepairCron)
	assert.Equal(t, 3, cfg.ReminderHorizonDays)
	assert.NotEmpty(t, cfg.RatesURL)
}

func TestNewConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REMINDER_HORIZON_DAYS", "7")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 7, cfg.ReminderHorizonDays)
}

func TestNewConfigRejectsBadHorizon(t *testing.T) {
	t.Setenv("REMINDER_HORIZON_DAYS", "soon")

	_, err := NewConfig()
	assert.Error(t, err)
}
