//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/civicpulse/authcore/internal/otp"
	"github.com/civicpulse/authcore/internal/stores"
)

// cmdCounter is a go-redis Hook that counts round trips.
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.pipelines.Add(1)
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) total() int64 {
	return h.commands.Load() + h.pipelines.Load()
}

func newCountedService(t *testing.T) (*otp.Service, *cmdCounter) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	counter := &cmdCounter{}
	rdb.AddHook(counter)

	// Warm the script cache so EVALSHA misses do not count.
	svc, err := otp.NewService(stores.NewRedisCodeStore(rdb, "budget"), otp.Config{
		Length: 6, Expiry: time.Minute, MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()
	issued, err := svc.Issue(ctx, "warm@example.com", otp.PurposeLogin, otp.Metadata{})
	if err != nil {
		t.Fatalf("warm Issue: %v", err)
	}
	if _, err := svc.Verify(ctx, "warm@example.com", issued.Code, otp.PurposeLogin); err != nil {
		t.Fatalf("warm Verify: %v", err)
	}
	return svc, counter
}

func TestIssueIsOneRoundTrip(t *testing.T) {
	svc, counter := newCountedService(t)
	counter.reset()
	if _, err := svc.Issue(context.Background(), "ana@example.com", otp.PurposeSignup, otp.Metadata{}); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if got := counter.total(); got > 1 {
		t.Fatalf("Issue used %d round trips, want 1", got)
	}
}

func TestVerifyRoundTripBudget(t *testing.T) {
	svc, counter := newCountedService(t)
	ctx := context.Background()
	issued, err := svc.Issue(ctx, "ana@example.com", otp.PurposeLogin, otp.Metadata{})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	counter.reset()
	var mismatch *otp.MismatchError
	if _, err := svc.Verify(ctx, "ana@example.com", "000000x", otp.PurposeLogin); !errors.As(err, &mismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if got := counter.total(); got > 1 {
		t.Fatalf("wrong-code Verify used %d round trips, want 1", got)
	}

	counter.reset()
	if _, err := svc.Verify(ctx, "ana@example.com", issued.Code, otp.PurposeLogin); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := counter.total(); got > 2 {
		t.Fatalf("successful Verify used %d round trips, want <= 2", got)
	}

	counter.reset()
	if _, err := svc.Verify(ctx, "ana@example.com", issued.Code, otp.PurposeLogin); !errors.Is(err, otp.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after consume, got %v", err)
	}
	if got := counter.total(); got > 1 {
		t.Fatalf("absent Verify used %d round trips, want 1", got)
	}
}
