// Command otp-loadtest races concurrent verifications against single codes
// in a Redis code store and checks the single-use and attempt-cap
// guarantees under contention.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/civicpulse/authcore/internal/otp"
	"github.com/civicpulse/authcore/internal/stores"
)

func main() {
	fs := pflag.NewFlagSet("otp-loadtest", pflag.ContinueOnError)
	var (
		codes       = fs.Int("codes", 2000, "codes to issue per phase")
		concurrency = fs.Int("concurrency", 32, "concurrent verifiers per code")
		maxAttempts = fs.Int("max-attempts", 3, "attempt cap per code")
		redisAddr   = fs.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = fs.String("prefix", "lt", "key prefix")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if *codes <= 0 || *concurrency <= 0 || *maxAttempts <= 0 {
		fmt.Fprintln(os.Stderr, "codes, concurrency and max-attempts must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	svc, err := otp.NewService(stores.NewRedisCodeStore(client, *prefix), otp.Config{
		Length:      6,
		Expiry:      10 * time.Minute,
		MaxAttempts: *maxAttempts,
		Cooldown:    0,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "otp service: %v\n", err)
		os.Exit(1)
	}

	race := runPhase(ctx, svc, "race", *codes, *concurrency, true)
	guess := runPhase(ctx, svc, "guess", *codes, *concurrency, false)

	fmt.Println("---- results ----")
	printStats("race", race)
	printStats("guess", guess)

	failed := false
	if race.maxSuccesses > 1 {
		fmt.Printf("FAIL: a code was consumed %d times\n", race.maxSuccesses)
		failed = true
	}
	if race.zeroSuccesses > 0 {
		fmt.Printf("note: %d codes were exhausted before the winner consumed them\n", race.zeroSuccesses)
	}
	if guess.maxCompared > *maxAttempts {
		fmt.Printf("FAIL: %d comparisons against one code, cap is %d\n", guess.maxCompared, *maxAttempts)
		failed = true
	}
	if race.failures+guess.failures > 0 {
		fmt.Printf("FAIL: %d store errors\n", race.failures+guess.failures)
		failed = true
	}
	if failed {
		os.Exit(1)
	}
	fmt.Println("OK")
}

type phaseStats struct {
	total         time.Duration
	ops           int
	failures      int64
	maxSuccesses  int64
	zeroSuccesses int
	maxCompared   int
	p50           time.Duration
	p95           time.Duration
	p99           time.Duration
	opsPerS       float64
}

// runPhase issues one code per round and fires concurrency verifiers at it.
// With correct set every verifier submits the real code; otherwise every
// verifier guesses wrong.
func runPhase(ctx context.Context, svc *otp.Service, name string, rounds, concurrency int, correct bool) phaseStats {
	var (
		latencies = make([]time.Duration, 0, rounds*concurrency)
		mu        sync.Mutex
		failures  int64
		stats     phaseStats
	)

	start := time.Now()
	for i := 0; i < rounds; i++ {
		identity := fmt.Sprintf("%s-%d@loadtest.local", name, i)
		issued, err := svc.Issue(ctx, identity, otp.PurposeLogin, otp.Metadata{})
		if err != nil {
			atomic.AddInt64(&failures, 1)
			continue
		}
		submit := issued.Code
		if !correct {
			submit = wrongCode(issued.Code)
		}

		var successes, compared int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for w := 0; w < concurrency; w++ {
			g.Go(func() error {
				t0 := time.Now()
				_, err := svc.Verify(gctx, identity, submit, otp.PurposeLogin)
				d := time.Since(t0)

				var mismatch *otp.MismatchError
				switch {
				case err == nil:
					atomic.AddInt64(&successes, 1)
					atomic.AddInt64(&compared, 1)
				case errors.As(err, &mismatch):
					atomic.AddInt64(&compared, 1)
				case errors.Is(err, otp.ErrStoreUnavailable):
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if successes > stats.maxSuccesses {
			stats.maxSuccesses = successes
		}
		if correct && successes == 0 {
			stats.zeroSuccesses++
		}
		if int(compared) > stats.maxCompared {
			stats.maxCompared = int(compared)
		}
	}
	total := time.Since(start)

	out := computeStats(total, latencies, failures)
	out.maxSuccesses = stats.maxSuccesses
	out.zeroSuccesses = stats.zeroSuccesses
	out.maxCompared = stats.maxCompared
	return out
}

// wrongCode shifts every digit so the result never matches.
func wrongCode(code string) string {
	out := []byte(code)
	for i, c := range out {
		out[i] = '0' + (c-'0'+1)%10
	}
	return string(out)
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: verifies=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s max_successes=%d max_compared=%d\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
		s.maxSuccesses,
		s.maxCompared,
	)
}
