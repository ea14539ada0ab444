package authcore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/civicpulse/authcore/internal/accounts"
	"github.com/civicpulse/authcore/internal/audit"
	"github.com/civicpulse/authcore/internal/lockout"
	"github.com/civicpulse/authcore/internal/otp"
	"github.com/civicpulse/authcore/internal/rate"
	"github.com/civicpulse/authcore/internal/stores"
	"github.com/civicpulse/authcore/jwt"
	"github.com/civicpulse/authcore/password"
)

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	codeStore    CodeStore
	accountStore AccountStore
	notifier     Notifier
	sessions     SessionIssuer
	auditSink    AuditSink
	logger       *slog.Logger
	now          func() time.Time

	built bool
}

// New starts a Builder with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs codes, accounts and the issuance throttle with Redis.
// Stores set explicitly take precedence.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCodeStore overrides the code store.
func (b *Builder) WithCodeStore(s CodeStore) *Builder {
	b.codeStore = s
	return b
}

// WithAccountStore overrides the account store.
func (b *Builder) WithAccountStore(s AccountStore) *Builder {
	b.accountStore = s
	return b
}

// WithNotifier sets the delivery channel for codes.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithSessionIssuer replaces the default JWT session issuer.
func (b *Builder) WithSessionIssuer(s SessionIssuer) *Builder {
	b.sessions = s
	return b
}

// WithAuditSink sets where audit events go.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides the time source for codes, lockout and audit.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and assembles the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// -------- STORES --------
	codeStore := b.codeStore
	accountStore := b.accountStore
	if b.redis != nil {
		if codeStore == nil {
			codeStore = stores.NewRedisCodeStore(b.redis, cfg.Store.RedisPrefix, stores.WithCodeRetention(cfg.Store.CodeRetention))
		}
		if accountStore == nil {
			accountStore = stores.NewRedisAccountStore(b.redis, cfg.Store.RedisPrefix)
		}
	}
	if codeStore == nil || accountStore == nil {
		if cfg.Production {
			return nil, errors.New("production mode requires redis or explicit stores")
		}
		logger.Warn("using in-memory stores; state is lost on restart")
		if codeStore == nil {
			codeStore = otp.NewMemoryStore()
		}
		if accountStore == nil {
			accountStore = accounts.NewMemoryStore()
		}
	}

	// -------- CODES AND CREDENTIALS --------
	codes, err := otp.NewService(codeStore, otp.Config{
		Length:      cfg.OTP.Length,
		Expiry:      cfg.OTP.Expiry,
		MaxAttempts: cfg.OTP.MaxAttempts,
		Cooldown:    cfg.OTP.ResendCooldown,
	}, otp.WithClock(now))
	if err != nil {
		return nil, err
	}

	engine := &Engine{}

	hasher, err := newHasher(cfg.Password)
	if err != nil {
		return nil, err
	}
	auth, err := lockout.NewService(accountStore, hasher, lockout.Policy{
		Threshold: cfg.Lockout.Threshold,
		Duration:  cfg.Lockout.Duration,
	},
		lockout.WithClock(now),
		lockout.WithLogger(logger),
		lockout.WithOnLock(func(ctx context.Context, accountID string, until time.Time) {
			engine.onAccountLocked(ctx, accountID, until)
		}),
	)
	if err != nil {
		return nil, err
	}

	// -------- SESSIONS --------
	sessions := b.sessions
	if sessions == nil {
		jm, err := jwt.NewManager(jwt.Config{
			AccessTTL:     cfg.JWT.AccessTTL,
			SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
			PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
			PublicKey:     cloneBytes(cfg.JWT.PublicKey),
			Issuer:        cfg.JWT.Issuer,
			Audience:      cfg.JWT.Audience,
			Leeway:        cfg.JWT.Leeway,
			KeyID:         cfg.JWT.KeyID,
		})
		if err != nil {
			return nil, fmt.Errorf("session issuer: %w", err)
		}
		sessions = NewJWTSessionIssuer(jm)
	}

	*engine = Engine{
		config:   cfg,
		codes:    codes,
		auth:     auth,
		accounts: accountStore,
		notifier: b.notifier,
		sessions: sessions,
		logger:   logger,
		now:      now,
	}
	engine.throttle = rate.New(b.redis, cfg.Store.RedisPrefix, rate.Config{
		Enabled: cfg.OTP.IPThrottle.Enabled,
		Max:     cfg.OTP.IPThrottle.Max,
		Window:  cfg.OTP.IPThrottle.Window,
	})
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
	}, b.auditSink,
		audit.WithLogger(logger),
		audit.WithOnDrop(func(eventType string) {
			logger.Debug("audit event dropped", "event_type", eventType)
		}),
	)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}

func newHasher(cfg PasswordConfig) (password.Hasher, error) {
	primary, err := password.NewArgon2(password.Config{
		Memory:           cfg.Memory,
		Time:             cfg.Time,
		Parallelism:      cfg.Parallelism,
		SaltLength:       cfg.SaltLength,
		KeyLength:        cfg.KeyLength,
		MaxPasswordBytes: cfg.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	if !cfg.AcceptBcrypt {
		return primary, nil
	}
	legacy, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	return password.NewChain(primary, legacy), nil
}
