package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("authd", nil, env(nil))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 6, cfg.OTP.Length)
	assert.Equal(t, 10*time.Minute, cfg.OTP.Expiry)
	assert.Equal(t, 5, cfg.Lockout.Threshold)
	assert.Equal(t, 120*time.Minute, cfg.Lockout.Duration)
}

func TestLoadLayering(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":7000"
log:
  level: debug
  format: text
otp:
  resend_cooldown: 30s
lockout:
  threshold: 3
redis:
  addr: "redis:6379"
`)

	cfg, err := Load("authd",
		[]string{"--config", path, "--redis-addr", "flag-redis:6379"},
		env(map[string]string{
			"AUTHCORE_ADDR":              ":7100",
			"AUTHCORE_REDIS_ADDR":        "env-redis:6379",
			"AUTHCORE_LOCKOUT_THRESHOLD": "4",
		}))
	require.NoError(t, err)

	assert.Equal(t, ":7100", cfg.Server.Addr, "env beats file")
	assert.Equal(t, "flag-redis:6379", cfg.Redis.Addr, "flag beats env")
	assert.Equal(t, 4, cfg.Lockout.Threshold)
	assert.Equal(t, 30*time.Second, cfg.OTP.ResendCooldown)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, "server:\n  metrics_addr: \"\"\n")
	cfg, err := Load("authd", nil, env(map[string]string{"AUTHCORE_CONFIG": path}))
	require.NoError(t, err)
	assert.Empty(t, cfg.Server.MetricsAddr)
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeFile(t, "")
	_, err := Load("authd", []string{"--config", path}, env(nil))
	require.NoError(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "otp:\n  lenght: 8\n")
	_, err := Load("authd", []string{"--config", path}, env(nil))
	require.Error(t, err)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	_, err := Load("authd", nil, env(map[string]string{"AUTHCORE_LOCKOUT_DURATION": "forever"}))
	require.ErrorContains(t, err, "AUTHCORE_LOCKOUT_DURATION")
}

func TestProductionRequirements(t *testing.T) {
	_, err := Load("authd", []string{"--production"}, env(nil))
	require.ErrorContains(t, err, "redis or postgres")

	_, err = Load("authd", []string{"--production", "--redis-addr", "r:6379"}, env(nil))
	require.ErrorContains(t, err, "smtp")
}

func TestEngineConfig(t *testing.T) {
	cfg := Default()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
	cfg.OTP.IPThrottleMax = 0

	core, err := cfg.Engine()
	require.NoError(t, err)
	assert.Equal(t, []byte(cfg.JWT.Secret), core.JWT.PrivateKey)
	assert.False(t, core.OTP.IPThrottle.Enabled)
	assert.Equal(t, 3, core.OTP.MaxAttempts)
	assert.True(t, core.Metrics.Enabled)

	cfg.JWT.SigningMethod = "none"
	_, err = cfg.Engine()
	require.Error(t, err)
}

func TestEngineConfigReadsKeyFiles(t *testing.T) {
	dir := t.TempDir()
	pub := filepath.Join(dir, "pub.pem")
	require.NoError(t, os.WriteFile(pub, []byte("-----BEGIN PUBLIC KEY-----\n"), 0o600))

	cfg := Default()
	cfg.JWT.PublicKeyFile = pub
	core, err := cfg.Engine()
	require.NoError(t, err)
	assert.Contains(t, string(core.JWT.PublicKey), "PUBLIC KEY")

	cfg.JWT.PrivateKeyFile = filepath.Join(dir, "missing.pem")
	_, err = cfg.Engine()
	require.ErrorContains(t, err, "private key")
}
