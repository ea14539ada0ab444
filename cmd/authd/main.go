// Command authd serves the authcore HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/civicpulse/authcore"
	"github.com/civicpulse/authcore/httpapi"
	"github.com/civicpulse/authcore/internal/accounts"
	"github.com/civicpulse/authcore/internal/audit"
	"github.com/civicpulse/authcore/internal/otp"
	"github.com/civicpulse/authcore/internal/platform/config"
	"github.com/civicpulse/authcore/internal/platform/logger"
	"github.com/civicpulse/authcore/internal/stores"
	"github.com/civicpulse/authcore/internal/stores/postgres"
	"github.com/civicpulse/authcore/internal/workers/cleanup"
	"github.com/civicpulse/authcore/jwt"
	promexport "github.com/civicpulse/authcore/metrics/export/prometheus"
	"github.com/civicpulse/authcore/notify"
)

func main() {
	cfg, err := config.Load("authd", os.Args[1:], os.LookupEnv)
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "authd: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authd: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("authd stopped", "error", err)
		os.Exit(1)
	}
}

type storeSet struct {
	accounts accounts.Store
	codes    otp.Store
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config, coreCfg authcore.Config, log *slog.Logger) (storeSet, redis.UniversalClient, error) {
	set := storeSet{close: func() {}}

	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return set, nil, fmt.Errorf("redis ping: %w", err)
		}
		set.accounts = stores.NewRedisAccountStore(rdb, coreCfg.Store.RedisPrefix)
		set.codes = stores.NewRedisCodeStore(rdb, coreCfg.Store.RedisPrefix, stores.WithCodeRetention(coreCfg.Store.CodeRetention))
		set.close = func() { _ = rdb.Close() }
		log.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	if cfg.Postgres.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Postgres.DSN, postgres.PoolConfig{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			set.close()
			return set, nil, err
		}
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = db.Close()
				set.close()
				return set, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		set.accounts = postgres.NewAccountStore(db)
		set.codes = postgres.NewCodeStore(db)
		prev := set.close
		set.close = func() {
			_ = db.Close()
			prev()
		}
		log.Info("postgres connected", "migrated", cfg.Postgres.Migrate)
	}

	if set.accounts == nil {
		log.Warn("no redis or postgres configured, using in-memory stores")
		set.accounts = accounts.NewMemoryStore()
		set.codes = otp.NewMemoryStore()
	}
	return set, rdb, nil
}

func newNotifier(cfg *config.Config, log *slog.Logger) (authcore.Notifier, error) {
	if cfg.SMTP.Host == "" {
		return notify.Log{Logger: log.With("component", "notify"), IncludeCode: cfg.Notify.LogCodes}, nil
	}
	mailer, err := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, log.With("component", "smtp"))
	if err != nil {
		return nil, err
	}
	if !cfg.Notify.LogCodes {
		return mailer, nil
	}
	return notify.Multi{mailer, notify.Log{Logger: log.With("component", "notify"), IncludeCode: true}}, nil
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	coreCfg, err := cfg.Engine()
	if err != nil {
		return err
	}

	set, rdb, err := openStores(ctx, cfg, coreCfg, log)
	if err != nil {
		return err
	}
	defer set.close()

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     coreCfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(coreCfg.JWT.SigningMethod),
		PrivateKey:    coreCfg.JWT.PrivateKey,
		PublicKey:     coreCfg.JWT.PublicKey,
		Issuer:        coreCfg.JWT.Issuer,
		Audience:      coreCfg.JWT.Audience,
		KeyID:         coreCfg.JWT.KeyID,
	})
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	builder := authcore.New().
		WithConfig(coreCfg).
		WithAccountStore(set.accounts).
		WithCodeStore(set.codes).
		WithNotifier(notifier).
		WithSessionIssuer(authcore.NewJWTSessionIssuer(tokens)).
		WithLogger(log)
	if rdb != nil {
		builder = builder.WithRedis(rdb)
	}
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(audit.NewSlogSink(log.With("component", "audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	log.Info("security posture",
		"production", report.ProductionMode,
		"signing_alg", report.SigningAlgorithm,
		"argon2_memory_kb", report.Argon2.Memory,
		"argon2_time", report.Argon2.Time,
		"code_length", report.CodeLength,
		"code_expiry", report.CodeExpiry,
		"code_max_attempts", report.CodeMaxAttempts,
		"code_cooldown", report.CodeResendCooldown,
		"lockout_threshold", report.LockoutThreshold,
		"lockout_duration", report.LockoutDuration,
		"ip_throttle", report.IPThrottleActive,
		"require_delivery", report.DeliveryRequired,
		"audit", report.AuditActive,
	)

	router := chi.NewRouter()
	if cfg.Server.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Mount("/", httpapi.New(engine, tokens, log).Router())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	servers := []*http.Server{srv}

	if cfg.Server.MetricsAddr != "" {
		h, err := promexport.Handler(engine)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", h)
		servers = append(servers, &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(func() error {
			log.Info("listening", "addr", s.Addr)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", s.Addr, err)
			}
			return nil
		})
	}

	if cfg.Sweeper.Enabled {
		opts := []cleanup.Option{
			cleanup.WithInterval(cfg.Sweeper.Interval),
			cleanup.WithCodeGrace(cfg.Sweeper.CodeGrace),
			cleanup.WithLogger(log.With("component", "sweeper")),
		}
		if purger, ok := set.codes.(cleanup.CodeStore); ok {
			opts = append(opts, cleanup.WithCodeStore(purger))
		}
		sweeper, err := cleanup.New(set.accounts, cfg.Sweeper.UnverifiedTTL, opts...)
		if err != nil {
			return fmt.Errorf("sweeper: %w", err)
		}
		g.Go(func() error {
			if err := sweeper.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		var errs []error
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
