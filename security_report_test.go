package authcore

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSecurityReportReflectsPosture(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.OTP.Length = 8
		c.OTP.MaxAttempts = 5
		c.Lockout.Threshold = 3
		c.Notify.RequireDelivery = true
		c.Password.AcceptBcrypt = true
		c.Password.BcryptCost = 10
		c.Audit.Enabled = true
	})

	report := h.engine.SecurityReport()
	require.Equal(t, "hs256", report.SigningAlgorithm)
	require.False(t, report.ProductionMode)
	require.Equal(t, 8, report.CodeLength)
	require.Equal(t, 5, report.CodeMaxAttempts)
	require.Equal(t, 10*time.Minute, report.CodeExpiry)
	require.Equal(t, 3, report.LockoutThreshold)
	require.Equal(t, 120*time.Minute, report.LockoutDuration)
	require.Equal(t, uint32(8*1024), report.Argon2.Memory)
	require.True(t, report.BcryptAccepted)
	require.True(t, report.DeliveryRequired)
	require.True(t, report.AuditActive)
	// memory stores, no redis client: the per-IP throttle cannot run
	require.False(t, report.IPThrottleActive)
}

func TestSecurityReportThrottleNeedsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithNotifier(&recordingNotifier{}).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	require.True(t, engine.SecurityReport().IPThrottleActive)

	cfg := testConfig()
	cfg.OTP.IPThrottle.Enabled = false
	off, err := New().WithConfig(cfg).WithRedis(rdb).WithNotifier(&recordingNotifier{}).Build()
	require.NoError(t, err)
	t.Cleanup(off.Close)
	require.False(t, off.SecurityReport().IPThrottleActive)
}

func TestSecurityReportNilEngine(t *testing.T) {
	var e *Engine
	require.Equal(t, SecurityReport{}, e.SecurityReport())
}
