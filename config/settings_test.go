package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("STORE_DRIVER", "Memory")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "memory", s.StoreDriver)
	assert.Equal(t, "8080", s.ServerPort)
	assert.Equal(t, 7, s.CancelWindowDays)
	assert.Equal(t, time.Hour, s.TransferInterval)
	assert.Equal(t, 3*time.Minute, s.HeartbeatTimeout)
	assert.Equal(t, 10*time.Minute, s.MonitorWindow)
	assert.Equal(t, time.UTC, s.Timezone)
	assert.Empty(t, s.NotifyStaffEmails)
	assert.Same(t, s, Current)
}

func TestLoadSettingsOverrides(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CANCEL_WINDOW_DAYS", "10")
	t.Setenv("ABANDONMENT_INTERVAL", "30s")
	t.Setenv("NOTIFY_STAFF_EMAILS", " ops@example.com, ,lead@example.com ")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 10, s.CancelWindowDays)
	assert.Equal(t, 30*time.Second, s.AbandonmentInterval)
	assert.Equal(t, []string{"ops@example.com", "lead@example.com"}, s.NotifyStaffEmails)
}

func TestLoadSettingsRejectsInvalid(t *testing.T) {
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("STORE_DRIVER", "postgres")
	_, err := LoadSettings()
	assert.ErrorContains(t, err, "STORE_DRIVER")

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CANCEL_WINDOW_DAYS", "0")
	_, err = LoadSettings()
	assert.ErrorContains(t, err, "CANCEL_WINDOW_DAYS")

	t.Setenv("CANCEL_WINDOW_DAYS", "7")
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = LoadSettings()
	assert.ErrorContains(t, err, "TIMEZONE")
}
