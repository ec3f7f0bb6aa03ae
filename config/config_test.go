package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/rota-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("PAYMENT_SIMULATE_FAILURE", "")

	cfg := config.Load()
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Empty(t, cfg.Gemini.APIKey)
	assert.False(t, cfg.Payment.Fail)
	assert.Equal(t, 1500*time.Millisecond, cfg.Payment.Latency)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("GEMINI_API_KEY", "k-123")
	t.Setenv("PAYMENT_SIMULATE_FAILURE", "true")
	t.Setenv("PAYMENT_LATENCY", "0s")
	t.Setenv("SCHEDULER_DEADLINE_SWEEP", "*/5 * * * *")

	cfg := config.Load()
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "k-123", cfg.Gemini.APIKey)
	assert.True(t, cfg.Payment.Fail)
	assert.Zero(t, cfg.Payment.Latency)
	assert.Equal(t, "*/5 * * * *", cfg.Scheduler.DeadlineSweep)
}

func TestGetEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("ROTA_TEST_INT", "twelve")
	t.Setenv("ROTA_TEST_BOOL", "maybe")
	t.Setenv("ROTA_TEST_DURATION", "soon")

	assert.Equal(t, 12, config.GetEnvInt("ROTA_TEST_INT", 12))
	assert.True(t, config.GetEnvBool("ROTA_TEST_BOOL", true))
	assert.Equal(t, time.Minute, config.GetEnvDuration("ROTA_TEST_DURATION", time.Minute))
	assert.Equal(t, "fallback", config.GetEnvString("ROTA_TEST_UNSET", "fallback"))
}
