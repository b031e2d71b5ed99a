package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 2*time.Minute, cfg.LockTTL)
	assert.Equal(t, "flat", cfg.TierPolicy)
	assert.True(t, cfg.TargetBaseline().IsZero())
	assert.False(t, cfg.IsProduction())
	assert.Empty(t, cfg.Tenants())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("TIER_POLICY", "target_tier")
	t.Setenv("TIER_DOUBLE_AT", "1.25")
	t.Setenv("SYNC_TENANTS", " salon-a, ,salon-b ")
	t.Setenv("SYNC_INTERVAL", "30m")
	t.Setenv("ENV", "production")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "1.25", cfg.DoubleAt().String())
	assert.Equal(t, []string{"salon-a", "salon-b"}, cfg.Tenants())
	assert.Equal(t, 30*time.Minute, cfg.SyncInterval)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"store driver": {"STORE_DRIVER", "postgres"},
		"double at":    {"TIER_DOUBLE_AT", "lots"},
		"baseline":     {"DEFAULT_TARGET_BASELINE", "abc"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := config.NewLogger("production", "warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1)) // debug
	assert.True(t, logger.Core().Enabled(1))   // warn

	_, err = config.NewLogger("development", "loud")
	assert.Error(t, err)
}
