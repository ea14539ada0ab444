//go:build integration
// +build integration

package test

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/civicpulse/authcore"
	"github.com/civicpulse/authcore/httpapi"
	"github.com/civicpulse/authcore/jwt"
)

// redisMode describes which Redis backend a suite runs against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes always includes miniredis. Real Redis is added when REDIS_ADDR
// is set, a cluster when REDIS_CLUSTER_ADDRS is.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: splitAddrs(addrs)})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis cluster: %v", err)
				}
				return rdb, func() { _ = rdb.Close() }
			},
		})
	}
	return modes
}

func splitAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// mailbox records notifications so tests can read the codes.
type mailbox struct {
	mu   sync.Mutex
	sent []authcore.Notification
}

func (m *mailbox) Send(_ context.Context, n authcore.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

func (m *mailbox) lastCode(t *testing.T, identity string, purpose authcore.Purpose) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		n := m.sent[i]
		if n.Kind == authcore.NotificationCode && n.Identity == identity && n.Purpose == purpose {
			return n.Code
		}
	}
	t.Fatalf("no %s code sent to %s", purpose, identity)
	return ""
}

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.JWT.SigningMethod = string(jwt.MethodHS256)
	cfg.JWT.PrivateKey = []byte("integration-signing-key-0123456789")
	cfg.OTP.ResendCooldown = 0
	cfg.Metrics.Enabled = true
	return cfg
}

type stack struct {
	engine *authcore.Engine
	tokens *jwt.Manager
	mail   *mailbox
	server *httptest.Server
}

// newStack wires an Engine on rdb behind the HTTP API.
func newStack(t *testing.T, rdb redis.UniversalClient) *stack {
	t.Helper()
	cfg := testConfig()
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    cfg.JWT.PrivateKey,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		t.Fatalf("jwt.NewManager: %v", err)
	}
	mail := &mailbox{}
	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithNotifier(mail).
		WithSessionIssuer(authcore.NewJWTSessionIssuer(tokens)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	srv := httptest.NewServer(httpapi.New(engine, tokens, nil).Router())
	t.Cleanup(func() {
		srv.Close()
		engine.Close()
	})
	return &stack{engine: engine, tokens: tokens, mail: mail, server: srv}
}
