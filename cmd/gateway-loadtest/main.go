package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/internal/devserver"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Each wave expires every access token and fires concurrent requests through
// one gateway. A healthy gate performs exactly one reissue per wave.
func main() {
	var (
		waves        = flag.Int("waves", 20, "number of expiry waves")
		concurrency  = flag.Int("concurrency", 64, "concurrent requests per wave")
		reissueDelay = flag.Duration("reissue-delay", 20*time.Millisecond, "artificial reissue latency so callers pile up")
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *waves <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "waves and concurrency must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
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
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	cfg := devserver.DefaultConfig()
	cfg.ReissueDelay = *reissueDelay
	cfg.KeyPrefix = "loadtest"
	srv, err := devserver.New(cfg, client, log.New(io.Discard, "", 0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "devserver: %v\n", err)
		os.Exit(1)
	}
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cookie jar: %v\n", err)
		os.Exit(1)
	}
	httpClient := &http.Client{Jar: jar, Timeout: 10 * time.Second}

	if err := login(ctx, httpClient, hs.URL); err != nil {
		fmt.Fprintf(os.Stderr, "login: %v\n", err)
		os.Exit(1)
	}

	gwCfg := goAuthClient.DefaultConfig()
	gwCfg.Transport.BaseURL = hs.URL + "/api"
	gwCfg.Metrics.Enabled = true
	gwCfg.Metrics.EnableLatencyHistograms = true

	gw, err := goAuthClient.New().
		WithConfig(gwCfg).
		WithHTTPClient(httpClient).
		WithLogger(log.New(io.Discard, "", 0)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
	defer gw.Close()

	fmt.Printf("running %d waves x %d requests...\n", *waves, *concurrency)
	stats, anomalies := runWaves(ctx, gw, srv, *waves, *concurrency)

	fmt.Println("---- results ----")
	printStats("wave requests", stats)
	snap := gw.MetricsSnapshot()
	fmt.Printf("reissues=%d refresh_started=%d replayed=%d pending_queued=%d\n",
		srv.ReissueCount(),
		snap.Counters[goAuthClient.MetricRefreshStarted],
		snap.Counters[goAuthClient.MetricReplayed],
		snap.Counters[goAuthClient.MetricPendingQueued],
	)
	if anomalies > 0 || srv.ReissueCount() != int64(*waves) {
		fmt.Printf("FAIL: %d waves reissued more than once, %d reissues for %d waves\n", anomalies, srv.ReissueCount(), *waves)
		os.Exit(1)
	}
	fmt.Println("OK: one reissue per wave")
}

func login(ctx context.Context, c *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/dev/login", strings.NewReader(`{"email":"loadtest@mcpanda.dev"}`))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func runWaves(ctx context.Context, gw *goAuthClient.Gateway, srv *devserver.Server, waves, concurrency int) (phaseStats, int) {
	var (
		failures  int64
		anomalies int
		latencies = make([]time.Duration, 0, waves*concurrency)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < waves; w++ {
		before := srv.ReissueCount()
		srv.ExpireAccessTokens()

		var wg sync.WaitGroup
		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				t0 := time.Now()
				_, err := gw.Do(ctx, http.MethodGet, "/members/me")
				d := time.Since(t0)

				mu.Lock()
				latencies = append(latencies, d)
				if err != nil {
					failures++
					if errors.Is(err, goAuthClient.ErrRefreshFailed) {
						fmt.Fprintf(os.Stderr, "wave %d: %v\n", w, err)
					}
				}
				mu.Unlock()
			}()
		}
		wg.Wait()

		if srv.ReissueCount()-before > 1 {
			anomalies++
		}
	}
	total := time.Since(start)
	return computeStats(total, latencies, failures), anomalies
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
