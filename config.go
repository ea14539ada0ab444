package authcore

import (
	"errors"
	"fmt"
	"time"
)

// Config is the full engine configuration. Start from [DefaultConfig].
type Config struct {
	OTP        OTPConfig
	Lockout    LockoutConfig
	Password   PasswordConfig
	JWT        JWTConfig
	Notify     NotifyConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Store      StoreConfig
	Production bool
}

/*
====================================
CODES
====================================
*/

// OTPConfig shapes codes and their resend and throttle limits.
type OTPConfig struct {
	Length         int
	Expiry         time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
	IPThrottle     IPThrottleConfig
}

// IPThrottleConfig caps code requests per origin address across all
// identities. It needs a Redis client and is skipped without one.
type IPThrottleConfig struct {
	Enabled bool
	Max     int
	Window  time.Duration
}

/*
====================================
CREDENTIALS
====================================
*/

// LockoutConfig bounds failed credential checks.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// PasswordConfig selects argon2id parameters. AcceptBcrypt keeps verifying
// legacy bcrypt hashes and upgrades them on the next successful login.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	AcceptBcrypt     bool
	BcryptCost       int
}

// JWTConfig configures session tokens.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
COLLABORATORS AND HYGIENE
====================================
*/

// NotifyConfig controls delivery failure handling. By default a failed send
// is logged and audited and the flow still succeeds with
// Receipt.Delivered=false.
type NotifyConfig struct {
	RequireDelivery bool
	SendWelcome     bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SinkTimeout time.Duration
}

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// StoreConfig applies to the Redis-backed stores the builder creates.
type StoreConfig struct {
	RedisPrefix   string
	CodeRetention time.Duration
	UnverifiedTTL time.Duration
}

// DefaultConfig returns the documented defaults. JWT keys are empty and must
// be set unless a SessionIssuer is supplied to the builder.
func DefaultConfig() Config {
	return Config{
		OTP: OTPConfig{
			Length:         6,
			Expiry:         10 * time.Minute,
			MaxAttempts:    3,
			ResendCooldown: 60 * time.Second,
			IPThrottle: IPThrottleConfig{
				Enabled: true,
				Max:     20,
				Window:  time.Hour,
			},
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  120 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:           64 * 1024,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
		},
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "authcore",
		},
		Notify: NotifyConfig{
			SendWelcome: true,
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 5 * time.Second,
		},
		Store: StoreConfig{
			RedisPrefix:   "ac",
			CodeRetention: time.Hour,
			UnverifiedTTL: 24 * time.Hour,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks ranges. JWT keys are checked by the builder because they
// are optional when a custom SessionIssuer is used.
func (c *Config) Validate() error {
	// Codes
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return errors.New("OTP Length must be between 4 and 10")
	}
	if c.OTP.Expiry <= 0 {
		return errors.New("OTP Expiry must be > 0")
	}
	if c.OTP.MaxAttempts < 1 {
		return errors.New("OTP MaxAttempts must be >= 1")
	}
	if c.OTP.ResendCooldown < 0 {
		return errors.New("OTP ResendCooldown must be >= 0")
	}
	if c.OTP.ResendCooldown >= c.OTP.Expiry {
		return errors.New("OTP ResendCooldown must be shorter than Expiry")
	}
	if c.OTP.IPThrottle.Enabled && (c.OTP.IPThrottle.Max <= 0 || c.OTP.IPThrottle.Window <= 0) {
		return errors.New("OTP IPThrottle requires Max > 0 and Window > 0")
	}

	// Lockout
	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 || c.Password.Parallelism < 1 {
		return errors.New("Password Time and Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
		return errors.New("Password SaltLength and KeyLength must be >= 16")
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}

	// Store
	if c.Store.CodeRetention < 0 {
		return errors.New("Store CodeRetention must be >= 0")
	}
	if c.Store.UnverifiedTTL <= 0 {
		return errors.New("Store UnverifiedTTL must be > 0")
	}

	if c.Production {
		if err := c.validateProduction(); err != nil {
			return fmt.Errorf("production config: %w", err)
		}
	}
	return nil
}

func (c *Config) validateProduction() error {
	switch {
	case c.OTP.Length < 6:
		return errors.New("OTP Length must be >= 6")
	case c.OTP.MaxAttempts > 5:
		return errors.New("OTP MaxAttempts must be <= 5")
	case c.OTP.Expiry > 30*time.Minute:
		return errors.New("OTP Expiry must be <= 30m")
	case c.Password.Memory < 19*1024:
		return errors.New("Password Memory must be >= 19456 KB")
	case c.JWT.AccessTTL > time.Hour:
		return errors.New("JWT AccessTTL must be <= 1h")
	case !c.OTP.IPThrottle.Enabled:
		return errors.New("OTP IPThrottle must be enabled")
	}
	return nil
}
