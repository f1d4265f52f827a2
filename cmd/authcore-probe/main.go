// Command authcore-probe measures the latency of the durable key-value store
// that backs session persistence. It seeds session-shaped records, then runs
// a concurrent read phase and a concurrent rewrite phase, reporting
// throughput and latency percentiles for each.
//
// The probe exists to size storage costs on end-user machines: session
// resume happens on every studio launch and token rotation writes on every
// login, so both paths should stay well under perceptible latency on the
// slowest supported disks.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/studioapi/authcore/storage"
)

type sessionRecord struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	var (
		records     = flag.Int("records", 1000, "number of session records to seed")
		concurrency = flag.Int("concurrency", 16, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (read + rewrite)")
		path        = flag.String("path", "", "bolt database path; if empty a temp file is used")
		inMemory    = flag.Bool("memory", false, "use the in-memory store instead of bolt")
	)
	flag.Parse()

	if *records <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "records, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	var (
		kv      storage.KV
		cleanup func()
	)
	if *inMemory {
		kv = storage.NewMemory()
		cleanup = func() {}
		fmt.Println("using in-memory store")
	} else {
		dbPath := *path
		if dbPath == "" {
			dir, err := os.MkdirTemp("", "authcore-probe-")
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
				os.Exit(1)
			}
			dbPath = filepath.Join(dir, "probe.db")
			cleanup = func() { _ = os.RemoveAll(dir) }
		} else {
			cleanup = func() {}
		}
		bolt, err := storage.OpenBolt(dbPath, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open bolt store: %v\n", err)
			os.Exit(1)
		}
		kv = bolt
		fmt.Printf("using bolt store at %s\n", dbPath)
	}
	defer cleanup()
	defer func() { _ = kv.Close() }()

	keys := make([]string, *records)
	fmt.Printf("seeding %d session records...\n", *records)
	startSeed := time.Now()
	for i := 0; i < *records; i++ {
		keys[i] = fmt.Sprintf("probe/session-%d", i)
		if err := writeRecord(kv, keys[i]); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	readStats := runPhase(keys, *ops, *concurrency, func(key string) error {
		raw, err := kv.Get(key)
		if err != nil {
			return err
		}
		var rec sessionRecord
		return json.Unmarshal(raw, &rec)
	})
	rewriteStats := runPhase(keys, *ops, *concurrency, func(key string) error {
		return writeRecord(kv, key)
	})

	fmt.Println("---- results ----")
	printStats("read", readStats)
	printStats("rewrite", rewriteStats)
}

func writeRecord(kv storage.KV, key string) error {
	raw, err := json.Marshal(sessionRecord{
		Token:     uuid.NewString(),
		Email:     "probe@localhost",
		Role:      "editor",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		return err
	}
	return kv.Put(key, raw)
}

func runPhase(keys []string, ops, concurrency int, op func(key string) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				key := keys[r.Intn(len(keys))]
				t0 := time.Now()
				err := op(key)
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
