// Package config loads authd configuration.
//
// Values are layered: built-in defaults, then the YAML file named by
// --config or AUTHCORE_CONFIG, then AUTHCORE_* environment variables, then
// command-line flags. Later layers win.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/civicpulse/authcore"
)

const envPrefix = "AUTHCORE_"

// Config is the authd configuration file.
type Config struct {
	Production bool           `yaml:"production"`
	Server     ServerConfig   `yaml:"server"`
	Log        LogConfig      `yaml:"log"`
	Redis      RedisConfig    `yaml:"redis"`
	Postgres   PostgresConfig `yaml:"postgres"`
	SMTP       SMTPConfig     `yaml:"smtp"`
	Notify     NotifyConfig   `yaml:"notify"`
	OTP        OTPConfig      `yaml:"otp"`
	Lockout    LockoutConfig  `yaml:"lockout"`
	JWT        JWTConfig      `yaml:"jwt"`
	Sweeper    SweeperConfig  `yaml:"sweeper"`
	Audit      AuditConfig    `yaml:"audit"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TrustProxy      bool          `yaml:"trust_proxy"`
}

// LogConfig selects level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RedisConfig leaves Addr empty to run on in-memory stores.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// PostgresConfig moves accounts and codes to Postgres when DSN is set.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

// SMTPConfig leaves Host empty to log notifications instead of mailing them.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// NotifyConfig selects and configures delivery.
type NotifyConfig struct {
	RequireDelivery bool `yaml:"require_delivery"`
	SendWelcome     bool `yaml:"send_welcome"`
	// LogCodes writes plaintext codes to the log notifier. Development only.
	LogCodes        bool `yaml:"log_codes"`
}

// OTPConfig maps onto authcore.OTPConfig.
type OTPConfig struct {
	Length         int           `yaml:"length"`
	Expiry         time.Duration `yaml:"expiry"`
	MaxAttempts    int           `yaml:"max_attempts"`
	ResendCooldown time.Duration `yaml:"resend_cooldown"`
	IPThrottleMax  int           `yaml:"ip_throttle_max"`
	IPThrottleWin  time.Duration `yaml:"ip_throttle_window"`
}

// LockoutConfig maps onto authcore.LockoutConfig.
type LockoutConfig struct {
	Threshold int           `yaml:"threshold"`
	Duration  time.Duration `yaml:"duration"`
}

// JWTConfig reads keys from files. For hs256 the secret comes from
// AUTHCORE_JWT_SECRET only.
type JWTConfig struct {
	SigningMethod  string        `yaml:"signing_method"`
	PrivateKeyFile string        `yaml:"private_key_file"`
	PublicKeyFile  string        `yaml:"public_key_file"`
	Secret         string        `yaml:"-"`
	AccessTTL      time.Duration `yaml:"access_ttl"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	KeyID          string        `yaml:"key_id"`
}

// SweeperConfig schedules the retention sweeper.
type SweeperConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	UnverifiedTTL time.Duration `yaml:"unverified_ttl"`
	CodeGrace     time.Duration `yaml:"code_grace"`
}

// AuditConfig maps onto authcore.AuditConfig.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default mirrors authcore.DefaultConfig for the engine sections.
func Default() *Config {
	core := authcore.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MetricsAddr:     ":9090",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Redis: RedisConfig{
			Prefix: core.Store.RedisPrefix,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			Migrate:         true,
		},
		SMTP:   SMTPConfig{Port: 587},
		Notify: NotifyConfig{SendWelcome: core.Notify.SendWelcome},
		OTP: OTPConfig{
			Length:         core.OTP.Length,
			Expiry:         core.OTP.Expiry,
			MaxAttempts:    core.OTP.MaxAttempts,
			ResendCooldown: core.OTP.ResendCooldown,
			IPThrottleMax:  core.OTP.IPThrottle.Max,
			IPThrottleWin:  core.OTP.IPThrottle.Window,
		},
		Lockout: LockoutConfig{
			Threshold: core.Lockout.Threshold,
			Duration:  core.Lockout.Duration,
		},
		JWT: JWTConfig{
			SigningMethod: core.JWT.SigningMethod,
			AccessTTL:     core.JWT.AccessTTL,
			Issuer:        core.JWT.Issuer,
		},
		Sweeper: SweeperConfig{
			Enabled:       true,
			Interval:      10 * time.Minute,
			UnverifiedTTL: core.Store.UnverifiedTTL,
			CodeGrace:     time.Hour,
		},
	}
}

// ErrHelp is returned when --help was requested; usage has been printed.
var ErrHelp = pflag.ErrHelp

// Load parses args (without the program name) and builds the layered
// configuration. lookupEnv is usually os.LookupEnv.
func Load(name string, args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	var (
		path    string
		flagged = *cfg
	)
	fs.StringVar(&path, "config", "", "path to YAML config file (env AUTHCORE_CONFIG)")
	fs.StringVar(&flagged.Server.Addr, "addr", cfg.Server.Addr, "HTTP listen address")
	fs.StringVar(&flagged.Server.MetricsAddr, "metrics-addr", cfg.Server.MetricsAddr, "Prometheus listen address, empty to disable")
	fs.StringVar(&flagged.Log.Level, "log-level", cfg.Log.Level, "debug, info, warn or error")
	fs.StringVar(&flagged.Log.Format, "log-format", cfg.Log.Format, "json or text")
	fs.StringVar(&flagged.Redis.Addr, "redis-addr", cfg.Redis.Addr, "Redis address, empty for in-memory stores")
	fs.StringVar(&flagged.Postgres.DSN, "postgres-dsn", cfg.Postgres.DSN, "Postgres DSN for durable accounts and codes")
	fs.BoolVar(&flagged.Postgres.Migrate, "migrate", cfg.Postgres.Migrate, "apply database migrations on start")
	fs.BoolVar(&flagged.Production, "production", cfg.Production, "enable production hardening checks")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if path == "" {
		path, _ = lookupEnv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg, lookupEnv); err != nil {
		return nil, err
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = flagged.Server.Addr
		case "metrics-addr":
			cfg.Server.MetricsAddr = flagged.Server.MetricsAddr
		case "log-level":
			cfg.Log.Level = flagged.Log.Level
		case "log-format":
			cfg.Log.Format = flagged.Log.Format
		case "redis-addr":
			cfg.Redis.Addr = flagged.Redis.Addr
		case "postgres-dsn":
			cfg.Postgres.DSN = flagged.Postgres.DSN
		case "migrate":
			cfg.Postgres.Migrate = flagged.Postgres.Migrate
		case "production":
			cfg.Production = flagged.Production
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// envBinding maps one AUTHCORE_* variable onto a field.
type envBinding struct {
	name string
	set  func(cfg *Config, v string) error
}

var envBindings = []envBinding{
	{"PRODUCTION", func(c *Config, v string) error { return setBool(&c.Production, v) }},
	{"ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"METRICS_ADDR", func(c *Config, v string) error { c.Server.MetricsAddr = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"LOG_FORMAT", func(c *Config, v string) error { c.Log.Format = v; return nil }},
	{"REDIS_ADDR", func(c *Config, v string) error { c.Redis.Addr = v; return nil }},
	{"REDIS_PASSWORD", func(c *Config, v string) error { c.Redis.Password = v; return nil }},
	{"REDIS_DB", func(c *Config, v string) error { return setInt(&c.Redis.DB, v) }},
	{"POSTGRES_DSN", func(c *Config, v string) error { c.Postgres.DSN = v; return nil }},
	{"SMTP_HOST", func(c *Config, v string) error { c.SMTP.Host = v; return nil }},
	{"SMTP_PORT", func(c *Config, v string) error { return setInt(&c.SMTP.Port, v) }},
	{"SMTP_USERNAME", func(c *Config, v string) error { c.SMTP.Username = v; return nil }},
	{"SMTP_PASSWORD", func(c *Config, v string) error { c.SMTP.Password = v; return nil }},
	{"SMTP_FROM", func(c *Config, v string) error { c.SMTP.From = v; return nil }},
	{"JWT_SECRET", func(c *Config, v string) error { c.JWT.Secret = v; return nil }},
	{"JWT_PRIVATE_KEY_FILE", func(c *Config, v string) error { c.JWT.PrivateKeyFile = v; return nil }},
	{"JWT_PUBLIC_KEY_FILE", func(c *Config, v string) error { c.JWT.PublicKeyFile = v; return nil }},
	{"OTP_EXPIRY", func(c *Config, v string) error { return setDuration(&c.OTP.Expiry, v) }},
	{"OTP_RESEND_COOLDOWN", func(c *Config, v string) error { return setDuration(&c.OTP.ResendCooldown, v) }},
	{"LOCKOUT_THRESHOLD", func(c *Config, v string) error { return setInt(&c.Lockout.Threshold, v) }},
	{"LOCKOUT_DURATION", func(c *Config, v string) error { return setDuration(&c.Lockout.Duration, v) }},
}

func applyEnv(cfg *Config, lookupEnv func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookupEnv(envPrefix + b.name)
		if !ok {
			continue
		}
		if err := b.set(cfg, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, b.name, err)
		}
	}
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// Validate checks the binary-level settings. Engine ranges are checked by
// authcore.Config.Validate.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server addr is required")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", c.Log.Format)
	}
	if c.Production {
		if c.Redis.Addr == "" && c.Postgres.DSN == "" {
			return errors.New("production requires redis or postgres")
		}
		if c.SMTP.Host == "" {
			return errors.New("production requires smtp")
		}
		if c.Notify.LogCodes {
			return errors.New("log_codes is not allowed in production")
		}
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return errors.New("smtp from address is required")
	}
	return nil
}

// Engine translates the file config into authcore.Config. JWT key material
// is read from disk here.
func (c *Config) Engine() (authcore.Config, error) {
	out := authcore.DefaultConfig()
	out.Production = c.Production
	out.OTP.Length = c.OTP.Length
	out.OTP.Expiry = c.OTP.Expiry
	out.OTP.MaxAttempts = c.OTP.MaxAttempts
	out.OTP.ResendCooldown = c.OTP.ResendCooldown
	out.OTP.IPThrottle.Enabled = c.OTP.IPThrottleMax > 0
	out.OTP.IPThrottle.Max = c.OTP.IPThrottleMax
	out.OTP.IPThrottle.Window = c.OTP.IPThrottleWin
	out.Lockout.Threshold = c.Lockout.Threshold
	out.Lockout.Duration = c.Lockout.Duration
	out.Notify.RequireDelivery = c.Notify.RequireDelivery
	out.Notify.SendWelcome = c.Notify.SendWelcome
	out.Audit.Enabled = c.Audit.Enabled
	out.Metrics.Enabled = true
	out.Metrics.EnableLatencyHistograms = true
	out.Store.RedisPrefix = c.Redis.Prefix
	out.Store.UnverifiedTTL = c.Sweeper.UnverifiedTTL

	out.JWT.SigningMethod = c.JWT.SigningMethod
	out.JWT.AccessTTL = c.JWT.AccessTTL
	out.JWT.Issuer = c.JWT.Issuer
	out.JWT.Audience = c.JWT.Audience
	out.JWT.KeyID = c.JWT.KeyID
	switch c.JWT.SigningMethod {
	case "hs256":
		out.JWT.PrivateKey = []byte(c.JWT.Secret)
	case "ed25519":
		var err error
		if c.JWT.PrivateKeyFile != "" {
			if out.JWT.PrivateKey, err = os.ReadFile(c.JWT.PrivateKeyFile); err != nil {
				return authcore.Config{}, fmt.Errorf("read jwt private key: %w", err)
			}
		}
		if c.JWT.PublicKeyFile != "" {
			if out.JWT.PublicKey, err = os.ReadFile(c.JWT.PublicKeyFile); err != nil {
				return authcore.Config{}, fmt.Errorf("read jwt public key: %w", err)
			}
		}
	default:
		return authcore.Config{}, fmt.Errorf("unsupported jwt signing method %q", c.JWT.SigningMethod)
	}

	if err := out.Validate(); err != nil {
		return authcore.Config{}, err
	}
	return out, nil
}
