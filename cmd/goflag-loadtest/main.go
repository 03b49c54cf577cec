package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goFlag "github.com/MrEthical07/goFlag"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type target struct {
	userID   string
	moduleID string
	flag     string
}

func main() {
	var (
		users        = flag.Int("users", 2000, "number of distinct users")
		modules      = flag.Int("modules", 20, "number of modules; every other one is dynamic")
		concurrency  = flag.Int("concurrency", 128, "number of concurrent workers")
		ops          = flag.Int("ops", 100000, "operations per phase (derive + submit)")
		invalidRatio = flag.Float64("invalid-ratio", 0.3, "share of submissions carrying a wrong flag")
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix       = flag.String("prefix", "fg", "redis key prefix")
	)
	flag.Parse()

	if *users <= 0 || *modules <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, modules, concurrency, and ops must be > 0")
		os.Exit(2)
	}
	if *invalidRatio < 0 || *invalidRatio > 1 {
		fmt.Fprintln(os.Stderr, "invalid-ratio must be within [0, 1]")
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
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	provider, err := goFlag.NewStaticModuleProvider()
	if err != nil {
		fmt.Fprintf(os.Stderr, "provider: %v\n", err)
		os.Exit(1)
	}

	cfg := goFlag.MultiInstanceConfig()
	cfg.Storage.RedisPrefix = *prefix
	cfg.Submission.Capacity = *ops
	cfg.Submission.RefillEvery = time.Millisecond
	cfg.InvalidSubmission.Capacity = *ops
	cfg.InvalidSubmission.RefillEvery = time.Millisecond
	cfg.Audit.Enabled = false

	engine, err := goFlag.New().
		WithConfig(cfg).
		WithRedis(client).
		WithModuleProvider(provider).
		WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	if _, err := engine.ResetSubmissions(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "reset ledger: %v\n", err)
		os.Exit(1)
	}

	moduleIDs := make([]string, *modules)
	for i := range moduleIDs {
		moduleIDs[i] = fmt.Sprintf("mod-%d", i)
		m := goFlag.Module{ID: moduleIDs[i]}
		if i%2 == 0 {
			m.Flag = goFlag.StaticFlag{Value: fmt.Sprintf("flag{static-%d}", i)}
		} else {
			key, err := engine.NewModuleKey()
			if err != nil {
				fmt.Fprintf(os.Stderr, "module key: %v\n", err)
				os.Exit(1)
			}
			m.Flag = goFlag.DynamicFlag{Key: key}
		}
		if err := provider.Put(m); err != nil {
			fmt.Fprintf(os.Stderr, "module: %v\n", err)
			os.Exit(1)
		}
	}

	deriveStats := runDerivePhase(ctx, engine, moduleIDs, *users, *ops, *concurrency)
	submitStats, solves := runSubmitPhase(ctx, engine, provider, moduleIDs, *users, *ops, *concurrency, *invalidRatio)

	fmt.Println("---- results ----")
	printStats("derive", deriveStats)
	printStats("submit", submitStats)

	if err := checkSolvedInvariant(ctx, engine, *users, solves); err != nil {
		fmt.Fprintf(os.Stderr, "invariant violated: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("solved-row invariant holds: %d solves\n", solves)
}

func runDerivePhase(ctx context.Context, engine *goFlag.Engine, moduleIDs []string, users, ops, concurrency int) phaseStats {
	dynamic := make([]string, 0, len(moduleIDs)/2)
	for i, id := range moduleIDs {
		if i%2 == 1 {
			dynamic = append(dynamic, id)
		}
	}
	if len(dynamic) == 0 {
		return phaseStats{}
	}

	return runPhase(ops, concurrency, 7919, func(r *rand.Rand, _ int) error {
		user := fmt.Sprintf("user-%d", r.Intn(users))
		_, err := engine.DeriveFlag(ctx, user, dynamic[r.Intn(len(dynamic))])
		return err
	})
}

func runSubmitPhase(
	ctx context.Context,
	engine *goFlag.Engine,
	provider *goFlag.StaticModuleProvider,
	moduleIDs []string,
	users, ops, concurrency int,
	invalidRatio float64,
) (phaseStats, int64) {
	var solves int64

	stats := runPhase(ops, concurrency, 6151, func(r *rand.Rand, i int) error {
		t := target{
			userID:   fmt.Sprintf("user-%d", r.Intn(users)),
			moduleID: moduleIDs[r.Intn(len(moduleIDs))],
		}
		if r.Float64() < invalidRatio {
			t.flag = fmt.Sprintf("flag{wrong-%d}", i)
		} else {
			f, err := correctFlag(ctx, engine, provider, t)
			if err != nil {
				return err
			}
			t.flag = f
		}

		sub, err := engine.Submit(ctx, t.userID, t.moduleID, t.flag)
		switch {
		case err == nil:
			if sub.Valid {
				atomic.AddInt64(&solves, 1)
			}
			return nil
		case errors.Is(err, goFlag.ErrModuleAlreadySolved):
			return nil
		default:
			return err
		}
	})
	return stats, solves
}

func correctFlag(ctx context.Context, engine *goFlag.Engine, provider *goFlag.StaticModuleProvider, t target) (string, error) {
	m, err := provider.FindModuleByID(ctx, t.moduleID)
	if err != nil {
		return "", err
	}
	if s, ok := m.Flag.(goFlag.StaticFlag); ok {
		return s.Value, nil
	}
	return engine.DeriveFlag(ctx, t.userID, t.moduleID)
}

// checkSolvedInvariant verifies that every user has at most one valid row
// per module and that the ledger agrees with the number of successful solves.
func checkSolvedInvariant(ctx context.Context, engine *goFlag.Engine, users int, solves int64) error {
	var validRows int64
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("user-%d", u)
		rows, err := engine.Submissions(ctx, userID)
		if err != nil {
			return err
		}
		seen := make(map[string]bool)
		for _, row := range rows {
			if !row.Valid {
				continue
			}
			if seen[row.ModuleID] {
				return fmt.Errorf("user %s solved %s twice", userID, row.ModuleID)
			}
			seen[row.ModuleID] = true
			validRows++
		}
		solved, err := engine.SolvedModules(ctx, userID)
		if err != nil {
			return err
		}
		if len(solved) != len(seen) {
			return fmt.Errorf("user %s: %d solved modules but %d valid rows", userID, len(solved), len(seen))
		}
	}
	if validRows != solves {
		return fmt.Errorf("ledger holds %d valid rows, workers observed %d solves", validRows, solves)
	}
	return nil
}

func runPhase(ops, concurrency int, seedStep int64, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seedStep))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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
