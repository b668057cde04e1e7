// Package workload drives a CHashMap with a randomized mix of reads, inserts
// and removals from several goroutines and reports what it did.
package workload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/llxisdsh/chashmap"
)

// KeyPrefix is prepended to every generated key.
const KeyPrefix = "key-"

// Config shapes a run.
type Config struct {
	// Goroutines is the number of concurrent workers.
	Goroutines int
	// Ops is the total number of operations across all workers. Zero
	// means run until Duration elapses.
	Ops int
	// Duration bounds the run. Zero means run until Ops are done.
	Duration time.Duration
	// Keys is the size of the key space.
	Keys int
	// ReadPercent is the share of reads; the rest is split evenly between
	// inserts and removals.
	ReadPercent int
	// Warmup inserts every key before the clock starts.
	Warmup bool
	// Shrink calls ShrinkToFit after the run.
	Shrink bool
	// Rate caps operations per second across all workers; 0 is unlimited.
	Rate int
	// Seed makes the operation stream reproducible for a fixed
	// Goroutines value.
	Seed uint64
}

// Result summarizes a run.
type Result struct {
	Reads   int64
	Hits    int64
	Inserts int64
	Removes int64
	Elapsed time.Duration

	Len          int
	Capacity     int
	CapacityPost int
}

// Ops is the total number of operations performed.
func (r Result) Ops() int64 {
	return r.Reads + r.Inserts + r.Removes
}

// OpsPerSec is the measured throughput.
func (r Result) OpsPerSec() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Ops()) / r.Elapsed.Seconds()
}

// Runner executes a workload against a map.
type Runner struct {
	m       *chashmap.CHashMap[string, int]
	cfg     Config
	keys    []string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New prepares a Runner. The key space is generated up front so key
// formatting does not show up in the measurement.
func New(m *chashmap.CHashMap[string, int], cfg Config, logger *slog.Logger) (*Runner, error) {
	if cfg.Goroutines < 1 {
		return nil, fmt.Errorf("workload: goroutines = %d, need at least 1", cfg.Goroutines)
	}
	if cfg.Keys < 1 {
		return nil, fmt.Errorf("workload: keys = %d, need at least 1", cfg.Keys)
	}
	if cfg.Ops <= 0 && cfg.Duration <= 0 {
		return nil, errors.New("workload: either ops or duration must be positive")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Runner{
		m:      m,
		cfg:    cfg,
		keys:   make([]string, cfg.Keys),
		logger: logger,
	}
	for i := range r.keys {
		r.keys[i] = KeyPrefix + strconv.Itoa(i)
	}
	if cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), max(1, cfg.Rate/100))
	}
	return r, nil
}

type counters struct {
	reads, hits, inserts, removes int64
}

// Run executes the workload. It returns early with ctx's error if ctx is
// cancelled; reaching Duration is a normal end.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.cfg.Warmup {
		for i, k := range r.keys {
			r.m.Insert(k, i)
		}
		r.logger.Debug("warmup done", slog.Int("keys", len(r.keys)), slog.Int("capacity", r.m.Capacity()))
	}

	runCtx := ctx
	if r.cfg.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Duration)
		defer cancel()
	}

	per := make([]counters, r.cfg.Goroutines)
	g, gctx := errgroup.WithContext(runCtx)
	start := time.Now()
	for w := 0; w < r.cfg.Goroutines; w++ {
		quota := -1
		if r.cfg.Ops > 0 {
			quota = r.cfg.Ops / r.cfg.Goroutines
			if w < r.cfg.Ops%r.cfg.Goroutines {
				quota++
			}
		}
		g.Go(func() error {
			return r.worker(gctx, w, quota, &per[w])
		})
	}
	err := g.Wait()
	elapsed := time.Since(start)

	res := Result{Elapsed: elapsed}
	for _, c := range per {
		res.Reads += c.reads
		res.Hits += c.hits
		res.Inserts += c.inserts
		res.Removes += c.removes
	}
	res.Len = r.m.Len()
	res.Capacity = r.m.Capacity()
	res.CapacityPost = res.Capacity

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("workload interrupted: %w", ctxErr)
	}
	if err != nil {
		return res, err
	}

	if r.cfg.Shrink {
		r.m.ShrinkToFit()
		res.CapacityPost = r.m.Capacity()
	}
	r.logger.Debug("workload done",
		slog.Int64("ops", res.Ops()),
		slog.Duration("elapsed", res.Elapsed),
		slog.Int("len", res.Len),
		slog.Int("capacity", res.Capacity),
	)
	return res, nil
}

// worker performs quota operations, or runs until ctx is done when quota
// is negative. Deadline and cancellation are not errors here; Run decides
// based on the parent context.
func (r *Runner) worker(ctx context.Context, id, quota int, c *counters) error {
	rng := rand.New(rand.NewPCG(r.cfg.Seed, uint64(id)))
	// convert percent to permille so the write split stays integral
	readThreshold := 10 * r.cfg.ReadPercent
	insertThreshold := readThreshold + (1000-readThreshold)/2

	for n := 0; quota < 0 || n < quota; n++ {
		if n&63 == 0 && ctx.Err() != nil {
			return nil
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		i := rng.IntN(len(r.keys))
		op := rng.IntN(1000)
		switch {
		case op < readThreshold:
			c.reads++
			if _, ok := r.m.Value(r.keys[i]); ok {
				c.hits++
			}
		case op < insertThreshold:
			c.inserts++
			r.m.Insert(r.keys[i], i)
		default:
			c.removes++
			r.m.Remove(r.keys[i])
		}
	}
	return nil
}
