// Command authcore-loadtest measures Authenticate and Refresh throughput
// against a real engine. Without -redis-addr or REDIS_ADDR it runs on
// miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/password"
	"github.com/sentinelgrid/authcore/store/memory"
)

const loadPassword = "load-test-password-1"

type userState struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func main() {
	var (
		users       = flag.Int("users", 200, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (authenticate + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	cleanup := func() {}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer func() {
		_ = client.Close()
		cleanup()
	}()

	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("loadtest-secret-0123456789abcdef")
	cfg.RateLimit.Enabled = false
	// Seeding cost is dominated by hashing; keep it low for a throughput run.
	cfg.Password.Algorithm = password.AlgorithmArgon2id
	cfg.Password.Argon2 = password.Argon2Params{Memory: 19 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(memory.New()).
		WithLogger(log.New(io.Discard, "", 0)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]userState, *users)
	fmt.Printf("seeding %d accounts...\n", *users)
	startSeed := time.Now()
	for i := range states {
		email := fmt.Sprintf("load-%d@example.com", i)
		if _, err := engine.Register(ctx, email, loadPassword); err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
		res, err := engine.Login(ctx, email, loadPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		states[i].access = res.AccessToken
		states[i].refresh = res.RefreshToken
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		s := &states[r.IntN(len(states))]
		s.mu.Lock()
		token := s.access
		s.mu.Unlock()
		_, err := engine.Authenticate(ctx, token)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		s := &states[r.IntN(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		res, err := engine.Refresh(ctx, s.refresh)
		if err != nil {
			return err
		}
		s.access, s.refresh = res.AccessToken, res.RefreshToken
		return nil
	})

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("refresh", refreshStats)

	snapshot := engine.MetricsSnapshot()
	fmt.Printf("reuse_detected=%d store_unavailable=%d audit_dropped=%d\n",
		snapshot.Counters[authcore.MetricRefreshReuseDetected],
		snapshot.Counters[authcore.MetricStoreUnavailable],
		engine.AuditDropped(),
	)
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(worker)*7919))
			for {
				if int(cursor.Add(1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					failures.Add(1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
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
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
