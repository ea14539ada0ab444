package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/civicpulse/authcore/internal/otp"
	"github.com/civicpulse/authcore/internal/stores"
)

func TestWrongCodeNeverMatches(t *testing.T) {
	for _, code := range []string{"000000", "123456", "999999", "090909"} {
		w := wrongCode(code)
		if w == code || len(w) != len(code) {
			t.Fatalf("wrongCode(%q) = %q", code, w)
		}
	}
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50 = %v", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100 = %v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty = %v", got)
	}
}

func TestRunPhaseHoldsGuarantees(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, err := otp.NewService(stores.NewRedisCodeStore(client, "lt"), otp.Config{
		Length: 6, Expiry: time.Minute, MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	race := runPhase(context.Background(), svc, "race", 20, 8, true)
	if race.maxSuccesses > 1 {
		t.Fatalf("code consumed %d times", race.maxSuccesses)
	}
	if race.failures != 0 {
		t.Fatalf("store failures: %d", race.failures)
	}

	guess := runPhase(context.Background(), svc, "guess", 20, 8, false)
	if guess.maxSuccesses != 0 {
		t.Fatalf("wrong code accepted")
	}
	if guess.maxCompared > 3 {
		t.Fatalf("compared %d times, cap 3", guess.maxCompared)
	}
}
