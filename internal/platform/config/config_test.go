package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"APP_TRIAL_DAYS", "APP_REMINDER_DAYS", "REMINDER_FIRE_AT", "REMINDER_TZ",
		"DFM_TIMEOUT", "KAFKA_BROKERS", "ONBOARDING_ADDR",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, 15, cfg.Trial.Days)
	assert.Equal(t, []int{5, 3, 1}, cfg.Trial.ReminderDays)
	assert.Equal(t, 13, cfg.Trial.FireHour)
	assert.Equal(t, 59, cfg.Trial.FireMinute)
	assert.Equal(t, 15*time.Minute, cfg.Trial.Grace)
	assert.Equal(t, 10*time.Second, cfg.DFM.Timeout)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_TRIAL_DAYS", "30")
	t.Setenv("APP_REMINDER_DAYS", "1, 7,3,7")
	t.Setenv("REMINDER_FIRE_AT", "09:30")
	t.Setenv("REMINDER_TZ", "UTC")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Trial.Days)
	assert.Equal(t, []int{7, 3, 1}, cfg.Trial.ReminderDays)
	assert.Equal(t, 9, cfg.Trial.FireHour)
	assert.Equal(t, 30, cfg.Trial.FireMinute)
	assert.Equal(t, time.UTC, cfg.Trial.Location)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestParseReminderDaysRejectsOutOfRange(t *testing.T) {
	_, err := ParseReminderDays("5,15", 15)
	assert.Error(t, err)

	_, err = ParseReminderDays("0", 15)
	assert.Error(t, err)

	_, err = ParseReminderDays("x", 15)
	assert.Error(t, err)

	_, err = ParseReminderDays(" , ", 15)
	assert.Error(t, err)
}

func TestFromEnvRejectsBadClock(t *testing.T) {
	t.Setenv("REMINDER_FIRE_AT", "25:00")
	_, err := FromEnv()
	assert.Error(t, err)
}
