package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulingDefaults(t *testing.T) {
	c := LoadSchedulingConfig()
	assert.Equal(t, DefaultSchedulingConfig(), c)
}

func TestSchedulingOverrides(t *testing.T) {
	t.Setenv("SCHEDULE_OPEN_HOUR", "10")
	t.Setenv("SCHEDULE_LATEST_START_HOUR", "22")
	t.Setenv("SCHEDULE_CLEANING_BUFFER", "20m")
	t.Setenv("SCHEDULE_TIMEZONE", "Europe/Minsk")

	c := LoadSchedulingConfig()
	assert.Equal(t, 10, c.OpenHour)
	assert.Equal(t, 22, c.LatestStartHour)
	assert.Equal(t, 20*time.Minute, c.CleaningBuffer)
	assert.Equal(t, "Europe/Minsk", c.Location.String())
}

func TestSchedulingValidate(t *testing.T) {
	assert.NoError(t, DefaultSchedulingConfig().Validate())

	for name, mutate := range map[string]func(*SchedulingConfig){
		"sub-minute granularity":  func(c *SchedulingConfig) { c.Granularity = 30 * time.Second },
		"fractional granularity":  func(c *SchedulingConfig) { c.Granularity = 90 * time.Second },
		"zero granularity":        func(c *SchedulingConfig) { c.Granularity = 0 },
		"open after latest start": func(c *SchedulingConfig) { c.OpenHour = 22 },
		"latest start past 23h":   func(c *SchedulingConfig) { c.LatestStartHour = 24 },
	} {
		c := DefaultSchedulingConfig()
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}

	c := DefaultSchedulingConfig()
	c.Granularity = 10 * time.Minute
	assert.NoError(t, c.Validate())
}

func TestReservationConfigClampsBadValues(t *testing.T) {
	t.Setenv("HOLD_TTL", "-1m")
	t.Setenv("HOLD_MAX_SEATS", "0")
	c := LoadReservationConfig()
	assert.Equal(t, 10*time.Minute, c.HoldTTL)
	assert.Equal(t, 1, c.MaxSeats)
	assert.Equal(t, 120*time.Minute, c.RefundDeadline)
}

func TestSweeperConfig(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "1m")
	c := LoadSweeperConfig()
	assert.Equal(t, time.Minute, c.Interval)
	assert.Equal(t, 500, c.BatchSize)
}

func TestRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	c := LoadRateLimitConfig()
	assert.Equal(t, 5, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 2*time.Second, c.RefillInterval)
	assert.Equal(t, 10*time.Minute, c.TTL)

	h := LoadHoldRateLimitConfig()
	assert.Equal(t, "rl:hold", h.Prefix)
	assert.Equal(t, "user_route", h.KeyStrategy)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "off")
	t.Setenv("X_INT", "nope")
	assert.False(t, envBool("X_BOOL", true))
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, "d", envStr("X_MISSING", "d"))
}

func TestCacheMethodsUpperCased(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	c := LoadCacheConfig()
	assert.True(t, c.Methods["GET"])
	assert.True(t, c.Methods["HEAD"])
	assert.False(t, c.Methods["POST"])
}
