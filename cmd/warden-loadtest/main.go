// Command warden-loadtest measures token verification and revocation
// throughput against the Redis revocation registry.
//
// It issues -tokens signed tokens over -subjects accounts, then runs a
// verify phase (signature, claims and revocation lookup on random tokens)
// and a revoke phase (single-token revocations). With no Redis address an
// embedded miniredis is used.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	mathrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/warden/rbac"
	"github.com/MrEthical07/warden/revocation"
	"github.com/MrEthical07/warden/token"
)

func main() {
	var (
		tokens      = flag.Int("tokens", 50000, "number of tokens to issue")
		subjects    = flag.Int("subjects", 1000, "number of distinct accounts")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		revokedPct  = flag.Int("revoked-pct", 10, "percent of subjects with a logout-all cutoff before the verify phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, WARDEN_REDIS_ADDR or miniredis is used")
		prefix      = flag.String("prefix", "warden:loadtest", "revocation key prefix")
	)
	flag.Parse()

	if *tokens <= 0 || *subjects <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "tokens, subjects, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("WARDEN_REDIS_ADDR")
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

	registry := revocation.NewRedis(client, *prefix)

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		fmt.Fprintf(os.Stderr, "key generation failed: %v\n", err)
		os.Exit(1)
	}
	keys, err := token.NewKeySet(token.KeySetConfig{Method: token.MethodHS256, KeyID: "loadtest", PrivateKey: secret})
	if err != nil {
		fmt.Fprintf(os.Stderr, "key set: %v\n", err)
		os.Exit(1)
	}
	authority, err := token.NewAuthority(token.Config{
		Keys:        keys,
		Issuer:      "warden-loadtest",
		DefaultTTL:  time.Hour,
		MaxTTL:      time.Hour,
		Revocations: registry,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "authority: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("issuing %d tokens...\n", *tokens)
	startIssue := time.Now()
	issued := make([]token.Token, *tokens)
	for i := range issued {
		tok, err := authority.Issue(fmt.Sprintf("acct-%d", i%*subjects), rbac.RoleMember, authority.DefaultTTL())
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		issued[i] = tok
	}
	fmt.Printf("issued in %s\n", time.Since(startIssue).Round(time.Millisecond))

	cut := *subjects * *revokedPct / 100
	now := time.Now()
	for s := 0; s < cut; s++ {
		if err := registry.RevokeSubject(ctx, fmt.Sprintf("acct-%d", s), now, authority.CutoffRetainUntil(now)); err != nil {
			fmt.Fprintf(os.Stderr, "revoke subject failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("revoked %d subjects\n", cut)

	verifyStats, rejected := runVerifyPhase(ctx, authority, issued, *ops, *concurrency)
	revokeStats := runRevokePhase(ctx, authority, registry, issued, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("verify", verifyStats)
	fmt.Printf("verify: revoked tokens rejected=%d\n", rejected)
	printStats("revoke", revokeStats)
}

// runVerifyPhase counts revocations separately; only other errors are
// failures.
func runVerifyPhase(ctx context.Context, authority *token.Authority, issued []token.Token, ops, concurrency int) (phaseStats, int64) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		rejected  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mathrand.New(mathrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				tok := issued[r.Intn(len(issued))]
				t0 := time.Now()
				_, err := authority.Verify(ctx, tok.Raw)
				d := time.Since(t0)
				switch {
				case errors.Is(err, token.ErrRevokedToken):
					atomic.AddInt64(&rejected, 1)
				case err != nil:
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures), rejected
}

func runRevokePhase(ctx context.Context, authority *token.Authority, registry revocation.Registry, issued []token.Token, ops, concurrency int) phaseStats {
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
			r := mathrand.New(mathrand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				tok := issued[r.Intn(len(issued))]
				t0 := time.Now()
				err := registry.Revoke(ctx, tok.TokenID, authority.RetainUntil(tok.ExpiresAt))
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
	return computeStats(time.Since(start), latencies, failures)
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
